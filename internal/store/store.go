package store

import "context"

// Settings is the full user preference map. API credentials are stored
// encrypted; absence of the row means the defaults from config apply.
type Settings struct {
	APIKeyEnc         string
	HuggingFaceKeyEnc string
	Model             string
	Temperature       float64
	MaxTokens         int
	TimeoutSeconds    int
	AutoAnswer        bool
	ShowButton        bool
	EnableSounds      bool
	AnonymousMode     bool
	AnswerStyle       string
	Language          string
	CustomPrompt      string
	FreeModels        []string
	LastAnswer        string
	CreatedAt         string
	UpdatedAt         string
}

// Ask is one asynchronous answer request, driven through the workflow layer.
type Ask struct {
	ID         string
	Text       string
	Mode       string
	Status     string
	Answer     string
	Model      string
	TokensUsed int
	Enhanced   bool
	Fallback   bool
	Error      string
	CreatedAt  string
	UpdatedAt  string
}

type AskEvent struct {
	AskID     string
	Seq       int64
	Type      string
	Timestamp string
	Source    string
	TraceID   string
	Payload   map[string]any
}

type Store interface {
	GetSettings(ctx context.Context) (*Settings, error)
	UpsertSettings(ctx context.Context, settings Settings) error

	CreateAsk(ctx context.Context, ask Ask) error
	GetAsk(ctx context.Context, askID string) (*Ask, error)
	ListAsks(ctx context.Context) ([]Ask, error)
	UpdateAsk(ctx context.Context, ask Ask) error
	DeleteAsk(ctx context.Context, askID string) error

	AppendEvent(ctx context.Context, event AskEvent) error
	ListEvents(ctx context.Context, askID string, afterSeq int64) ([]AskEvent, error)
	NextSeq(ctx context.Context, askID string) (int64, error)
}

const (
	AskStatusPending   = "pending"
	AskStatusRunning   = "running"
	AskStatusCompleted = "completed"
	AskStatusFailed    = "failed"
	AskStatusCancelled = "cancelled"
)
