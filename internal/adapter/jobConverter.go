package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/api"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/jobModel"
	"github.com/akolanti/TranscriptRAG/internal/rag"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
)

func ToInitJobResponse(id, sessionId string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		SessionId: sessionId,
		StatusURL: fmt.Sprintf("status/%s", id), //pass "status/job.Id"
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{Status: string(job.Status)}
	if job.JobType == jobModel.JobTypeIngest {
		result.IngestResponse = ToIngestResult(job.JobPayload)
	} else {
		result.RAGExternalResponse = ToRAGExternalStatus(job.JobPayload)
	}

	return api.JobResponse{
		Id:        job.Id,
		SessionId: job.SessionId,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToRAGExternalStatus(ragData jobModel.JobPayload) *api.RAGResponse {
	if ragData.Answer == "" && len(ragData.Citations) == 0 {
		return nil
	}
	citations := ragData.Citations
	if citations == nil {
		citations = []commonModels.Citation{}
	}
	return &api.RAGResponse{
		Question:  ragData.Question,
		Answer:    ragData.Answer,
		Citations: citations,
	}
}

func ToIngestResult(payload jobModel.JobPayload) *api.IngestResult {
	if payload.ChunksInserted == 0 && payload.ChunksSkipped == 0 {
		return nil
	}
	return &api.IngestResult{
		DocumentName:   payload.IngestFileName,
		ChunksInserted: payload.ChunksInserted,
		ChunksSkipped:  payload.ChunksSkipped,
	}
}

func ToFilter(f *api.FilterRequest) vectorDB.Filter {
	if f == nil {
		return vectorDB.Filter{}
	}
	return vectorDB.Filter{
		DocumentIds: f.DocumentIds,
		Sources:     f.Sources,
		Title:       f.Title,
	}
}

// ToAskOptions applies the request overrides on top of the defaults; retrieval stays on unless use_rag is false.
func ToAskOptions(useRAG *bool, topK int, filter *api.FilterRequest) rag.AskOptions {
	opts := rag.DefaultAskOptions()
	if useRAG != nil {
		opts.UseRAG = *useRAG
	}
	opts.K = topK
	opts.Filter = ToFilter(filter)
	return opts
}

func ToAskResponse(sessionId string, answer rag.Answer) api.AskResponse {
	citations := answer.Citations
	if citations == nil {
		citations = []commonModels.Citation{}
	}
	return api.AskResponse{
		SessionId:    sessionId,
		Answer:       answer.Text,
		Citations:    citations,
		NoContext:    answer.NoContext,
		UserSeq:      answer.UserSeq,
		AssistantSeq: answer.AssistantSeq,
	}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   code >= 500,
		},
	}
}
