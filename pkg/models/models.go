// Package models holds the entity types shared by every store and service
// in indiseek. All entities are scoped by repo_id except MetadataKV.
package models

import "time"

// RepoStatus is the lifecycle state of a Repo.
type RepoStatus string

const (
	RepoStatusCloning RepoStatus = "cloning"
	RepoStatusActive  RepoStatus = "active"
	RepoStatusDeleted RepoStatus = "deleted"
)

// Repo is an indexed source repository.
type Repo struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	OriginURL        string     `json:"origin_url"`
	LocalPath        string     `json:"local_path"`
	CreatedAt        time.Time  `json:"created_at"`
	LastIndexedAt    *time.Time `json:"last_indexed_at,omitempty"`
	IndexedCommitSHA string     `json:"indexed_commit_sha"` // empty means never indexed
	CurrentCommitSHA string     `json:"current_commit_sha"`
	CommitsBehind    int        `json:"commits_behind"` // -1 sentinel for "never indexed"
	Status           RepoStatus `json:"status"`
}

// SymbolKind enumerates the kinds of symbols produced by the parser.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolClass     SymbolKind = "class"
	SymbolMethod    SymbolKind = "method"
	SymbolInterface SymbolKind = "interface"
	SymbolType      SymbolKind = "type"
	SymbolEnum      SymbolKind = "enum"
	SymbolVariable  SymbolKind = "variable"
)

// Range is a half-open-by-convention source range; End is inclusive for
// lines, matching the tree-sitter symbols the parser produces.
type Range struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Contains reports whether line l falls within r (inclusive on both ends).
func (r Range) Contains(line int) bool {
	return line >= r.StartLine && line <= r.EndLine
}

// Symbol is a structural symbol extracted from one file. Scope is per-file;
// the set is rebuilt fully on every parse of that file.
type Symbol struct {
	ID             int64      `json:"id"`
	RepoID         int64      `json:"repo_id"`
	FilePath       string     `json:"file_path"`
	Name           string     `json:"name"`
	Kind           SymbolKind `json:"kind"`
	Range          Range      `json:"range"`
	Signature      string     `json:"signature"`
	ParentSymbolID *int64     `json:"parent_symbol_id,omitempty"`
}

// ChunkType enumerates the kind of AST-scoped unit a Chunk represents.
type ChunkType string

const (
	ChunkFunction  ChunkType = "function"
	ChunkClass     ChunkType = "class"
	ChunkMethod    ChunkType = "method"
	ChunkModule    ChunkType = "module"
	ChunkFile      ChunkType = "file"
	ChunkParagraph ChunkType = "paragraph"
)

// Chunk is a retrievable, AST-scoped unit of content suitable for embedding
// and lexical indexing.
type Chunk struct {
	ID            int64     `json:"id"`
	RepoID        int64     `json:"repo_id"`
	FilePath      string    `json:"file_path"`
	SymbolName    string    `json:"symbol_name"`
	ChunkType     ChunkType `json:"chunk_type"`
	StartLine     int       `json:"start_line"`
	EndLine       int       `json:"end_line"`
	Content       string    `json:"content"`
	TokenEstimate int       `json:"token_estimate"`
}

// CrossRefSymbol is the opaque, fully-qualified identifier minted by the
// external cross-reference tool. Unique per (SymbolString, RepoID),
// enforced by the xref_symbols table's UNIQUE(repo_id, symbol_string)
// constraint (see DESIGN.md Open Questions).
type CrossRefSymbol struct {
	ID            int64
	RepoID        int64
	SymbolString  string
	Documentation string
}

// OccurrenceRole distinguishes a defining occurrence from a use site.
type OccurrenceRole string

const (
	RoleDefinition OccurrenceRole = "definition"
	RoleReference  OccurrenceRole = "reference"
)

// Occurrence is one use of a CrossRefSymbol at a specific location.
type Occurrence struct {
	ID           int64
	XrefSymbolID int64
	RepoID       int64
	FilePath     string
	Range        Range
	Role         OccurrenceRole
}

// RelationshipKind enumerates the edges the cross-reference tool reports
// between symbols.
type RelationshipKind string

const (
	RelImplementation  RelationshipKind = "implementation"
	RelReference       RelationshipKind = "reference"
	RelTypeDefinition  RelationshipKind = "type_definition"
)

// XrefRelationship is a directed edge between two cross-reference symbols.
type XrefRelationship struct {
	ID                  int64
	XrefSymbolID        int64
	RelatedXrefSymbolID int64
	Kind                RelationshipKind
	RepoID              int64
}

// FileSummary is a one-sentence description of a single file's role.
type FileSummary struct {
	FilePath  string    `json:"file_path"`
	Summary   string    `json:"summary"`
	Language  string    `json:"language"`
	LineCount int       `json:"line_count"`
	RepoID    int64     `json:"repo_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DirectorySummary is a bottom-up description of a directory's role,
// derived from its child file and directory summaries. UpdatedAt lets the
// directory-summarize stage skip a directory whose children haven't
// changed since it was last summarized.
type DirectorySummary struct {
	DirPath   string    `json:"dir_path"`
	Summary   string    `json:"summary"`
	RepoID    int64     `json:"repo_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileContent is the authoritative source of a file's text, avoiding disk
// access at query time.
type FileContent struct {
	FilePath  string `json:"file_path"`
	Content   string `json:"content"`
	LineCount int    `json:"line_count"`
	RepoID    int64  `json:"repo_id"`
}

// QueryStatus enumerates the lifecycle of a Query row.
type QueryStatus string

const (
	QueryRunning   QueryStatus = "running"
	QueryCompleted QueryStatus = "completed"
	QueryFailed    QueryStatus = "failed"
	QueryCached    QueryStatus = "cached"
)

// EvidenceStep is one tool invocation recorded during an agent run.
type EvidenceStep struct {
	ToolName string          `json:"tool_name"`
	Args     map[string]any  `json:"args"`
	Summary  string          `json:"summary"`
	IsError  bool            `json:"is_error,omitempty"`
}

// Query is a question-answering request and its outcome. Immutable once
// completed; cached rows reference the row they were copied from.
type Query struct {
	ID               int64          `json:"id"`
	RepoID           int64          `json:"repo_id"`
	Prompt           string         `json:"prompt"`
	Answer           string         `json:"answer"`
	Evidence         []EvidenceStep `json:"evidence"`
	Status           QueryStatus    `json:"status"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	DurationSecs     float64        `json:"duration_secs"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	ThinkingTokens   int            `json:"thinking_tokens"`
	EstimatedCost    float64        `json:"estimated_cost"`
	SourceQueryID    *int64         `json:"source_query_id,omitempty"`
	Strategy         string         `json:"strategy"`
}

// MetadataKV is a global (not repo-scoped) key-value row.
type MetadataKV struct {
	Key   string
	Value string
}

// MetadataKeyLastIndexAt is the well-known key tracking the wall-clock
// time of the most recent index mutation, used to invalidate the query
// cache.
const MetadataKeyLastIndexAt = "last_index_at"

// TaskStatus enumerates the lifecycle of a background Task Manager job.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// ProgressEvent is one structured progress update emitted by a pipeline
// stage or lifecycle operation.
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Subject string `json:"subject,omitempty"`
}

// TaskRecord is the Task Manager's view of one submitted job.
type TaskRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    TaskStatus      `json:"status"`
	Result    any             `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Events    []ProgressEvent `json:"events"`
}
