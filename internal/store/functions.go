package store

import (
	"database/sql/driver"
	"fmt"
	"sync"

	sqlite "modernc.org/sqlite"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions installs the scalar functions the schema and queries use:
//
//	vec_cosine(a BLOB, b BLOB) REAL      cosine similarity of two encoded vectors
//	trgm_similarity(a TEXT, b TEXT) REAL pg_trgm style similarity
//
// Registration is process-wide and applies to connections opened afterwards.
func registerFunctions() error {
	registerOnce.Do(func() {
		if err := sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine); err != nil {
			registerErr = err
			return
		}
		registerErr = sqlite.RegisterDeterministicScalarFunction("trgm_similarity", 2, trgmSimilarity)
	})
	return registerErr
}

func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, err := blobArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := blobArg(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	va, err := DecodeVector(a)
	if err != nil {
		return nil, err
	}
	vb, err := DecodeVector(b)
	if err != nil {
		return nil, err
	}
	sim, err := CosineSimilarity(va, vb)
	if err != nil {
		return nil, fmt.Errorf("vec_cosine: %w", err)
	}
	return sim, nil
}

func blobArg(v driver.Value) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return x, nil
	default:
		return nil, fmt.Errorf("vec_cosine: unsupported argument type %T, want BLOB", v)
	}
}

func trgmSimilarity(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("trgm_similarity: expected 2 arguments, got %d", len(args))
	}
	a, okA := textArg(args[0])
	b, okB := textArg(args[1])
	if !okA || !okB {
		return nil, nil
	}
	return TrigramSimilarity(a, b), nil
}

func textArg(v driver.Value) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}
