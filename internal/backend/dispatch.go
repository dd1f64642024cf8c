package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/queue"
	"github.com/Aman-CERP/fttf/internal/search"
)

// Method names an operation reachable through Dispatch.
type Method string

const (
	MethodGetStatus      Method = "getStatus"
	MethodGetPageStatus  Method = "getPageStatus"
	MethodIndexPage      Method = "indexPage"
	MethodNothingToIndex Method = "nothingToIndex"
	MethodSearch         Method = "search"
	MethodSearchTrigram  Method = "searchTrigram"
	MethodSearchSemantic Method = "searchSemantic"
	MethodGetStats       Method = "getStats"
	MethodExportJSON     Method = "exportJson"
	MethodImportJSON     Method = "importJson"
	MethodReindex        Method = "reindex"
	MethodAddRule        Method = "addRule"
	MethodRemoveRule     Method = "removeRule"
	MethodListRules      Method = "listRules"
	MethodListTasks      Method = "listTasks"
	MethodRetryTask      Method = "retryTask"
	MethodDeleteTask     Method = "deleteTask"
)

// Methods lists every dispatchable method.
func Methods() []Method {
	return []Method{
		MethodGetStatus, MethodGetPageStatus, MethodIndexPage, MethodNothingToIndex,
		MethodSearch, MethodSearchTrigram, MethodSearchSemantic,
		MethodGetStats, MethodExportJSON, MethodImportJSON, MethodReindex,
		MethodAddRule, MethodRemoveRule, MethodListRules,
		MethodListTasks, MethodRetryTask, MethodDeleteTask,
	}
}

// URLRequest carries a single URL.
type URLRequest struct {
	URL string `json:"url"`
}

// SearchRequest is the payload of search.
type SearchRequest struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
	OrderBy string `json:"orderBy,omitempty"`
	// PreprocessQuery turns plain words into a prefix query. Defaults to true.
	PreprocessQuery *bool `json:"preprocessQuery,omitempty"`
}

// ScoredSearchRequest is the payload of searchTrigram and searchSemantic.
type ScoredSearchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// DumpPayload carries an export stream as a string.
type DumpPayload struct {
	Dump string `json:"dump"`
}

// RuleRequest is the payload of addRule.
type RuleRequest struct {
	Pattern string `json:"pattern"`
	Level   string `json:"level"`
}

// IDRequest carries a row id.
type IDRequest struct {
	ID int64 `json:"id"`
}

// TaskListRequest is the payload of listTasks.
type TaskListRequest struct {
	Status string `json:"status,omitempty"`
	Type   string `json:"type,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// OKResponse reports whether a mutation found its target.
type OKResponse struct {
	OK bool `json:"ok"`
}

// Dispatch decodes payload for method and runs it. Payloads are decoded
// strictly; an empty payload is an empty object.
func (b *Backend) Dispatch(ctx context.Context, method Method, payload json.RawMessage) (any, error) {
	switch method {
	case MethodGetStatus:
		return b.Status(), nil

	case MethodGetPageStatus:
		req, err := decode[URLRequest](method, payload)
		if err != nil {
			return nil, err
		}
		return b.GetPageStatus(ctx, req.URL)

	case MethodIndexPage:
		req, err := decode[PagePayload](method, payload)
		if err != nil {
			return nil, err
		}
		return b.IndexPage(ctx, req)

	case MethodNothingToIndex:
		req, err := decode[URLRequest](method, payload)
		if err != nil {
			return nil, err
		}
		found, err := b.NothingToIndex(ctx, req.URL)
		return OKResponse{OK: found}, err

	case MethodSearch:
		req, err := decode[SearchRequest](method, payload)
		if err != nil {
			return nil, err
		}
		order, err := search.ParseOrderBy(req.OrderBy)
		if err != nil {
			return nil, apperrors.ValidationError("invalid orderBy", err)
		}
		raw := req.PreprocessQuery != nil && !*req.PreprocessQuery
		return b.Search(ctx, search.FullTextOptions{
			Query: req.Query, Limit: req.Limit, Offset: req.Offset, OrderBy: order, Raw: raw,
		})

	case MethodSearchTrigram:
		req, err := decode[ScoredSearchRequest](method, payload)
		if err != nil {
			return nil, err
		}
		return b.SearchTrigram(ctx, req.Query, req.Limit)

	case MethodSearchSemantic:
		req, err := decode[ScoredSearchRequest](method, payload)
		if err != nil {
			return nil, err
		}
		opts := search.SemanticOptions{Limit: req.Limit}
		if req.Threshold != nil {
			opts.Threshold = *req.Threshold
		}
		return b.SearchSemantic(ctx, req.Query, opts)

	case MethodGetStats:
		return b.GetStats(ctx)

	case MethodExportJSON:
		var buf bytes.Buffer
		if _, err := b.Export(ctx, &buf); err != nil {
			return nil, err
		}
		return DumpPayload{Dump: buf.String()}, nil

	case MethodImportJSON:
		req, err := decode[DumpPayload](method, payload)
		if err != nil {
			return nil, err
		}
		return b.Import(ctx, strings.NewReader(req.Dump))

	case MethodReindex:
		return b.Reindex(ctx)

	case MethodAddRule:
		req, err := decode[RuleRequest](method, payload)
		if err != nil {
			return nil, err
		}
		return b.AddRule(ctx, req.Pattern, req.Level)

	case MethodRemoveRule:
		req, err := decode[IDRequest](method, payload)
		if err != nil {
			return nil, err
		}
		ok, err := b.RemoveRule(ctx, req.ID)
		return OKResponse{OK: ok}, err

	case MethodListRules:
		return b.ListRules(ctx)

	case MethodListTasks:
		req, err := decode[TaskListRequest](method, payload)
		if err != nil {
			return nil, err
		}
		return b.ListTasks(ctx, queue.Filter{
			Status: queue.Status(req.Status), Type: queue.TaskType(req.Type), Limit: req.Limit,
		})

	case MethodRetryTask:
		req, err := decode[IDRequest](method, payload)
		if err != nil {
			return nil, err
		}
		ok, err := b.RetryTask(ctx, req.ID)
		return OKResponse{OK: ok}, err

	case MethodDeleteTask:
		req, err := decode[IDRequest](method, payload)
		if err != nil {
			return nil, err
		}
		ok, err := b.DeleteTask(ctx, req.ID)
		return OKResponse{OK: ok}, err
	}

	return nil, apperrors.New(apperrors.ErrCodeUnknownMethod, fmt.Sprintf("unknown method %q", method), nil).
		WithSuggestion("Use one of the documented backend methods.")
}

func decode[T any](method Method, payload json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(payload)) == 0 {
		return v, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, apperrors.ValidationError(fmt.Sprintf("invalid %s payload", method), err).
			WithDetail("method", string(method))
	}
	return v, nil
}
