// Package store is the persistence layer of the history index: the SQLite
// engine, the document and fragment tables, bulk export and import, and the
// in-memory vector index built from stored embeddings.
package store

// Attribute names the document field a fragment was cut from.
type Attribute string

const (
	AttributeTitle   Attribute = "title"
	AttributeExcerpt Attribute = "excerpt"
	AttributeURL     Attribute = "url"
	AttributeContent Attribute = "content"
)

// Valid reports whether a is one of the four fragment attributes.
func (a Attribute) Valid() bool {
	switch a {
	case AttributeTitle, AttributeExcerpt, AttributeURL, AttributeContent:
		return true
	}
	return false
}

// Document is one visited page. Zero values map to NULL columns.
type Document struct {
	ID              int64  `json:"id"`
	Title           string `json:"title,omitempty"`
	URL             string `json:"url"`
	Excerpt         string `json:"excerpt,omitempty"`
	MdContent       string `json:"md_content,omitempty"`
	MdContentHash   string `json:"md_content_hash,omitempty"`
	PublicationDate int64  `json:"publication_date,omitempty"`
	Hostname        string `json:"hostname,omitempty"`
	LastVisit       int64  `json:"last_visit,omitempty"`
	LastVisitDate   string `json:"last_visit_date,omitempty"`
	Extractor       string `json:"extractor,omitempty"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at,omitempty"`
}

// HasContent reports whether the page was indexed with its body.
func (d *Document) HasContent() bool {
	return d != nil && d.MdContent != ""
}

// Fragment is a searchable unit of a document.
type Fragment struct {
	ID        int64     `json:"id"`
	EntityID  int64     `json:"entity_id"`
	Attribute Attribute `json:"attribute"`
	Value     string    `json:"value"`
	Order     int       `json:"fragment_order"`
	CreatedAt int64     `json:"created_at"`
	Vector    []float32 `json:"-"`
}

// FragmentInput is what a document contributes to the fragment table.
// Empty fields are skipped; Content is ordered.
type FragmentInput struct {
	Title   string
	Excerpt string
	URL     string
	Content []string
}

// Stats summarizes the database.
type Stats struct {
	Documents            int64 `json:"documents"`
	Fragments            int64 `json:"fragments"`
	FragmentsWithVectors int64 `json:"fragments_with_vectors"`
	PendingTasks         int64 `json:"pending_tasks"`
	FailedTasks          int64 `json:"failed_tasks"`
	DBBytes              int64 `json:"db_bytes"`
}
