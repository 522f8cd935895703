package graphql

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/lireddit"
	"github.com/MrEthical07/lireddit/middleware"
	graphqlgo "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
)

//go:embed schema.graphql
var schemaSDL string

// Schema returns the GraphQL schema definition served by Handler.
func Schema() string {
	return schemaSDL
}

// Options configures a Handler.
type Options struct {
	// PublicOperations may run without a session.
	PublicOperations []string
	// MaxDepth limits query nesting; zero disables the limit.
	MaxDepth int
	// MaxBodyBytes limits the request body; zero disables the limit.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// OptionsFromConfig maps the GraphQL section of cfg.
func OptionsFromConfig(cfg lireddit.GraphQLConfig, logger *slog.Logger) Options {
	return Options{
		PublicOperations: cfg.PublicOperations,
		MaxDepth:         cfg.MaxDepth,
		MaxBodyBytes:     cfg.MaxBodyBytes,
		Logger:           logger,
	}
}

// Handler serves POST requests carrying {query, operationName, variables}.
type Handler struct {
	schema       *graphqlgo.Schema
	public       allowList
	maxBodyBytes int64
	logger       *slog.Logger
}

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// NewHandler parses the schema against the resolvers for svc.
func NewHandler(svc Service, opts Options) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("graphql: nil service")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schemaOpts := []graphqlgo.SchemaOpt{
		graphqlgo.Logger(panicLogger{logger: logger}),
	}
	if opts.MaxDepth > 0 {
		schemaOpts = append(schemaOpts, graphqlgo.MaxDepth(opts.MaxDepth))
	}
	public := newAllowList(opts.PublicOperations)
	root := &Resolver{svc: svc, public: public, errors: &errorPresenter{logger: logger}}
	schema, err := graphqlgo.ParseSchema(schemaSDL, root, schemaOpts...)
	if err != nil {
		return nil, err
	}

	return &Handler{
		schema:       schema,
		public:       public,
		maxBodyBytes: opts.MaxBodyBytes,
		logger:       logger,
	}, nil
}

// IsPublic reports whether operationName may run without a session.
func (h *Handler) IsPublic(operationName string) bool {
	return h.public.allows(operationName)
}

// allowList holds lower-cased names that may run without a session. The same
// names gate operations in Handler and root fields in Resolver, since
// operationName is chosen by the client.
type allowList map[string]struct{}

func newAllowList(names []string) allowList {
	out := make(allowList, len(names))
	for _, name := range names {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			out[name] = struct{}{}
		}
	}
	return out
}

func (l allowList) allows(name string) bool {
	_, ok := l[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeErrors(w, http.StatusMethodNotAllowed, "method not allowed", lireddit.CodeBadUserInput)
		return
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	var req request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrors(w, http.StatusRequestEntityTooLarge, "request body too large", lireddit.CodeBadUserInput)
			return
		}
		if errors.Is(err, io.EOF) {
			writeErrors(w, http.StatusBadRequest, "empty request body", lireddit.CodeBadUserInput)
			return
		}
		writeErrors(w, http.StatusBadRequest, "malformed request body", lireddit.CodeBadUserInput)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeErrors(w, http.StatusBadRequest, "query is required", lireddit.CodeBadUserInput)
		return
	}

	ctx := r.Context()
	middleware.RecordOperation(ctx, req.OperationName)

	if !h.IsPublic(req.OperationName) {
		if _, ok := lireddit.SessionFromContext(ctx); !ok {
			writeErrors(w, http.StatusOK, lireddit.ErrUnauthorized.Error(), lireddit.CodeUnauthorized)
			return
		}
	}

	ctx, state := withRequestState(ctx)
	resp := h.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	h.write(ctx, w, state, resp)
}

func (h *Handler) write(ctx context.Context, w http.ResponseWriter, state *requestState, resp *graphqlgo.Response) {
	out, err := json.Marshal(resp)
	if err != nil {
		h.logger.ErrorContext(ctx, "graphql response encode failed", "error", err)
		writeErrors(w, http.StatusInternalServerError, "Internal server error", lireddit.CodeInternal)
		return
	}
	for _, c := range state.pendingCookies() {
		http.SetCookie(w, c)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func writeErrors(w http.ResponseWriter, status int, message string, code lireddit.Code) {
	resp := graphqlgo.Response{
		Errors: []*gqlerrors.QueryError{{
			Message:    message,
			Extensions: map[string]interface{}{"code": string(code)},
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
