package mcpServer

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/rag"
	"github.com/akolanti/TranscriptRAG/internal/rag/ingest"
	"github.com/akolanti/TranscriptRAG/internal/rag/retriever"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
	"github.com/akolanti/TranscriptRAG/internal/session"
)

type SearchInput struct {
	Query       string   `json:"query" jsonschema:"what to look for in the transcripts"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default 5)"`
	DocumentIds []string `json:"document_ids,omitempty" jsonschema:"only search these documents"`
	Sources     []string `json:"sources,omitempty" jsonschema:"only search documents from these sources"`
}

type SearchOutput struct {
	Results []PassageOutput `json:"results"`
	Count   int             `json:"count"`
}

type PassageOutput struct {
	ChunkId    string  `json:"chunk_id"`
	DocumentId string  `json:"document_id"`
	Title      string  `json:"title"`
	Offset     string  `json:"offset"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

type AskInput struct {
	SessionId string `json:"session_id,omitempty" jsonschema:"session to continue; a new one is opened when empty"`
	Message   string `json:"message" jsonschema:"the question"`
	UseRAG    *bool  `json:"use_rag,omitempty" jsonschema:"set false to answer without transcript context"`
	Limit     int    `json:"limit,omitempty" jsonschema:"number of passages to retrieve"`
}

type AskOutput struct {
	SessionId string           `json:"session_id"`
	Answer    string           `json:"answer"`
	NoContext bool             `json:"no_context"`
	Citations []CitationOutput `json:"citations"`
}

type CitationOutput struct {
	Label      string  `json:"label"`
	DocumentId string  `json:"document_id"`
	Title      string  `json:"title"`
	Offset     string  `json:"offset"`
	Score      float64 `json:"score"`
}

type CreateSessionInput struct {
	Name string `json:"name,omitempty" jsonschema:"optional display name"`
}

type SessionOutput struct {
	SessionId string `json:"session_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
}

type ExportSessionInput struct {
	SessionId string `json:"session_id" jsonschema:"session to export"`
	Format    string `json:"format,omitempty" jsonschema:"json or txt (default txt)"`
}

type ExportSessionOutput struct {
	SessionId string `json:"session_id"`
	Format    string `json:"format"`
	Content   string `json:"content"`
}

type IngestDocumentInput struct {
	Path        string `json:"path,omitempty" jsonschema:"transcript file on the server's disk (txt, pdf, docx, rtf, odt); a sidecar <name>.json next to it is read too"`
	DocumentId  string `json:"document_id,omitempty" jsonschema:"id of an inline transcript"`
	Title       string `json:"title,omitempty" jsonschema:"title of an inline transcript"`
	Source      string `json:"source,omitempty" jsonschema:"where an inline transcript came from"`
	Text        string `json:"text,omitempty" jsonschema:"inline transcript text"`
	DurationSec int    `json:"duration_seconds,omitempty" jsonschema:"programme length, used to estimate citation offsets"`
}

type IngestDocumentOutput struct {
	DocumentId string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Unchanged  bool   `json:"unchanged"`
	Replaced   bool   `json:"replaced"`
}

type IngestDirectoryInput struct {
	Directory string `json:"directory,omitempty" jsonschema:"folder under the server's transcripts directory; empty for the directory itself"`
}

type IngestDirectoryOutput struct {
	Documents []string                 `json:"documents"`
	Failures  []ingest.DocumentFailure `json:"failures"`
	Inserted  int                      `json:"inserted"`
	Skipped   int                      `json:"skipped"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the transcript index for passages relevant to a query",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the transcripts with cited sources, inside a conversation session",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_session",
		Description: "Open a new conversation session",
	}, s.handleCreateSession)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "export_session",
		Description: "Export the full turn log of a session",
	}, s.handleExportSession)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Add a transcript to the index, either from a file path or inline text",
	}, s.handleIngestDocument)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_directory",
		Description: "Add every transcript in a folder of the server's transcripts directory to the index",
	}, s.handleIngestDirectory)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, ragErrors.InvalidArgument("search", "query is required")
	}
	filter := vectorDB.Filter{DocumentIds: input.DocumentIds, Sources: input.Sources}
	results, err := s.ragService.Search(ctx, input.Query, input.Limit, filter)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{Results: make([]PassageOutput, len(results)), Count: len(results)}
	for i, r := range results {
		output.Results[i] = PassageOutput{
			ChunkId:    r.ChunkId,
			DocumentId: r.Metadata.DocumentId,
			Title:      r.Metadata.Title,
			Offset:     retriever.FormatOffset(time.Duration(r.Metadata.OffsetSeconds * float64(time.Second))),
			Score:      float64(r.Score),
			Text:       r.Metadata.Text,
		}
	}
	return nil, output, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	sessionId := input.SessionId
	if sessionId == "" {
		created, err := s.sessions.CreateSession(ctx, "")
		if err != nil {
			return nil, AskOutput{}, err
		}
		sessionId = created.Id
	}

	opts := rag.DefaultAskOptions()
	if input.UseRAG != nil {
		opts.UseRAG = *input.UseRAG
	}
	opts.K = input.Limit

	answer, err := s.ragService.Ask(ctx, sessionId, input.Message, opts)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		SessionId: sessionId,
		Answer:    answer.Text,
		NoContext: answer.NoContext,
		Citations: make([]CitationOutput, len(answer.Citations)),
	}
	for i, c := range answer.Citations {
		output.Citations[i] = toCitationOutput(c)
	}
	return nil, output, nil
}

func toCitationOutput(c commonModels.Citation) CitationOutput {
	return CitationOutput{
		Label:      c.Label,
		DocumentId: c.DocumentId,
		Title:      c.Title,
		Offset:     retriever.FormatOffset(c.Offset),
		Score:      float64(c.Score),
	}
}

func (s *Server) handleCreateSession(ctx context.Context, _ *mcp.CallToolRequest, input CreateSessionInput) (*mcp.CallToolResult, SessionOutput, error) {
	created, err := s.sessions.CreateSession(ctx, input.Name)
	if err != nil {
		return nil, SessionOutput{}, err
	}
	return nil, SessionOutput{
		SessionId: created.Id,
		Name:      created.Name,
		CreatedAt: created.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Server) handleExportSession(ctx context.Context, _ *mcp.CallToolRequest, input ExportSessionInput) (*mcp.CallToolResult, ExportSessionOutput, error) {
	format := session.Format(input.Format)
	if format == "" {
		format = session.FormatText
	}
	data, _, err := s.sessions.Export(ctx, input.SessionId, format)
	if err != nil {
		return nil, ExportSessionOutput{}, err
	}
	return nil, ExportSessionOutput{
		SessionId: input.SessionId,
		Format:    string(format),
		Content:   string(data),
	}, nil
}

func (s *Server) handleIngestDocument(ctx context.Context, _ *mcp.CallToolRequest, input IngestDocumentInput) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	doc, err := documentFromInput(input)
	if err != nil {
		return nil, IngestDocumentOutput{}, err
	}
	report, err := s.ragService.Ingest(ctx, doc)
	if err != nil {
		return nil, IngestDocumentOutput{}, err
	}
	return nil, IngestDocumentOutput(report), nil
}

func (s *Server) handleIngestDirectory(ctx context.Context, _ *mcp.CallToolRequest, input IngestDirectoryInput) (*mcp.CallToolResult, IngestDirectoryOutput, error) {
	report, err := s.ragService.IngestDirectory(ctx, input.Directory)
	if err != nil {
		return nil, IngestDirectoryOutput{}, err
	}
	output := IngestDirectoryOutput{
		Documents: make([]string, len(report.Documents)),
		Failures:  report.Failures,
		Inserted:  report.Inserted,
		Skipped:   report.Skipped,
	}
	for i, d := range report.Documents {
		output.Documents[i] = d.DocumentId
	}
	if output.Failures == nil {
		output.Failures = []ingest.DocumentFailure{}
	}
	return nil, output, nil
}

func documentFromInput(input IngestDocumentInput) (commonModels.Document, error) {
	switch {
	case input.Path != "" && input.Text != "":
		return commonModels.Document{}, ragErrors.InvalidArgument("ingest_document", "give either path or text, not both")
	case input.Path != "":
		return ingest.LoadFile(input.Path)
	case input.Text != "":
		return commonModels.Document{
			Id:       input.DocumentId,
			Title:    input.Title,
			Source:   input.Source,
			Text:     input.Text,
			Duration: time.Duration(input.DurationSec) * time.Second,
		}, nil
	default:
		return commonModels.Document{}, ragErrors.InvalidArgument("ingest_document", "path or text is required")
	}
}
