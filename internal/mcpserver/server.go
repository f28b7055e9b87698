package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/processor"
)

const protocolVersion = "2025-06-18"

// JSON-RPC 2.0 request
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSON-RPC 2.0 response
type jsonRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP tools/list result
type toolsListResult struct {
	Tools      []mcpTool `json:"tools"`
	NextCursor *string   `json:"nextCursor,omitempty"`
}

type mcpTool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	Type       string                `json:"type"`
	Properties map[string]schemaProp `json:"properties"`
	Required   []string              `json:"required,omitempty"`
}

type schemaProp struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Items       *schemaProp `json:"items,omitempty"`
}

// MCP tools/call result
type toolsCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// StoryCatalog is the read side exposed as tools.
type StoryCatalog interface {
	ListStories(ctx context.Context, genre models.Genre) ([]*models.StoryRecord, error)
	RandomStory(ctx context.Context, genre models.Genre) (*models.StoryRecord, error)
}

// StoryGenerator is the pipeline exposed as the generate_story tool.
type StoryGenerator interface {
	Generate(ctx context.Context, req models.StoryRequest, run processor.RunOptions) (*models.StoryRecord, error)
}

// Server implements MCP JSON-RPC 2.0 over HTTP (initialize, tools/list and tools/call).
type Server struct {
	catalog StoryCatalog
	stories StoryGenerator
}

// NewServer returns a new MCP server over the catalog and the story pipeline.
func NewServer(catalog StoryCatalog, stories StoryGenerator) *Server {
	return &Server{
		catalog: catalog,
		stories: stories,
	}
}

// Handler returns the HTTP handler for JSON-RPC requests.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveJSONRPC)
}

func (s *Server) serveJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, req.ID, -32700, "Parse error")
		return
	}
	if req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, -32600, "Invalid Request")
		return
	}

	var result interface{}
	var rpcErr *rpcError
	switch req.Method {
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo":      map[string]string{"name": "storyteller", "version": "1.0.0"},
		}
	case "notifications/initialized":
		w.WriteHeader(http.StatusAccepted)
		return
	case "tools/list":
		result, rpcErr = s.handleToolsList()
	case "tools/call":
		result, rpcErr = s.handleToolsCall(r.Context(), req.Params)
	default:
		writeRPCError(w, req.ID, -32601, "Method not found")
		return
	}

	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handleToolsList() (interface{}, *rpcError) {
	genre := schemaProp{Type: "string", Description: "Story genre", Enum: []string{string(models.GenreFantasy), string(models.GenreSciFi)}}
	return &toolsListResult{
		Tools: []mcpTool{
			{
				Name:        "random_story",
				Description: "Return one random illustrated, narrated story with resolved asset URLs",
				InputSchema: inputSchema{
					Type:       "object",
					Properties: map[string]schemaProp{"genre": genre},
				},
			},
			{
				Name:        "list_stories",
				Description: "List stored stories (id, title, genre, summary)",
				InputSchema: inputSchema{
					Type:       "object",
					Properties: map[string]schemaProp{"genre": genre},
				},
			},
			{
				Name:        "generate_story",
				Description: "Generate a new story with translations, illustrations and narration",
				InputSchema: inputSchema{
					Type: "object",
					Properties: map[string]schemaProp{
						"prompt": {Type: "string", Description: "What the story is about"},
						"title":  {Type: "string", Description: "Story title"},
						"genre":  genre,
						"tags":   {Type: "array", Items: &schemaProp{Type: "string"}},
					},
					Required: []string{"prompt", "title", "genre"},
				},
			},
		},
	}, nil
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, paramsRaw json.RawMessage) (interface{}, *rpcError) {
	var params toolsCallParams
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return nil, &rpcError{Code: -32602, Message: "Invalid params"}
	}
	var req models.StoryRequest
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &req); err != nil {
			return nil, &rpcError{Code: -32602, Message: "Invalid arguments"}
		}
	}
	switch params.Name {
	case "random_story":
		return s.callRandomStory(ctx, req.Genre)
	case "list_stories":
		return s.callListStories(ctx, req.Genre)
	case "generate_story":
		return s.callGenerateStory(ctx, req)
	default:
		return nil, &rpcError{Code: -32602, Message: "Unknown tool: " + params.Name}
	}
}

func optionalGenre(raw string) (models.Genre, error) {
	if raw == "" {
		return "", nil
	}
	return models.ParseGenre(raw)
}

func (s *Server) callRandomStory(ctx context.Context, rawGenre string) (interface{}, *rpcError) {
	genre, err := optionalGenre(rawGenre)
	if err != nil {
		return toolError(err), nil
	}
	record, err := s.catalog.RandomStory(ctx, genre)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(record), nil
}

func (s *Server) callListStories(ctx context.Context, rawGenre string) (interface{}, *rpcError) {
	genre, err := optionalGenre(rawGenre)
	if err != nil {
		return toolError(err), nil
	}
	stories, err := s.catalog.ListStories(ctx, genre)
	if err != nil {
		return toolError(err), nil
	}
	type storySummary struct {
		StoryID string       `json:"story_id"`
		Title   string       `json:"title"`
		Genre   models.Genre `json:"genre"`
		Summary string       `json:"summary"`
	}
	out := make([]storySummary, len(stories))
	for i, st := range stories {
		out[i] = storySummary{StoryID: st.StoryID, Title: st.Title, Genre: st.Genre, Summary: st.Summary}
	}
	return toolJSON(out), nil
}

func (s *Server) callGenerateStory(ctx context.Context, req models.StoryRequest) (interface{}, *rpcError) {
	record, err := s.stories.Generate(ctx, req, processor.RunOptions{})
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(record), nil
}

func toolJSON(v interface{}) *toolsCallResult {
	raw, err := json.Marshal(v)
	if err != nil {
		return toolError(err)
	}
	return &toolsCallResult{
		Content: []contentItem{{Type: "text", Text: string(raw)}},
		IsError: false,
	}
}

func toolError(err error) *toolsCallResult {
	return &toolsCallResult{
		Content: []contentItem{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
