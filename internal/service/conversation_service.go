package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paperchat-be/internal/constant"
	"paperchat-be/internal/dto"
	"paperchat-be/internal/entity"
	"paperchat-be/internal/pkg/logger"
	"paperchat-be/internal/repository/memory"
	"paperchat-be/internal/repository/specification"
	"paperchat-be/internal/repository/unitofwork"
	"paperchat-be/pkg/embedding"
	"paperchat-be/pkg/events"
	"paperchat-be/pkg/llm"
	"paperchat-be/pkg/rag/citation"
	"paperchat-be/pkg/rag/history"
	"paperchat-be/pkg/rag/prompt"
	"paperchat-be/pkg/rag/ragerr"
	"paperchat-be/pkg/rag/response"
	"paperchat-be/pkg/rag/retriever"
	ragsession "paperchat-be/pkg/rag/session"
	"paperchat-be/pkg/rerank"
	"paperchat-be/pkg/store"

	"github.com/google/uuid"
)

// StreamSink delivers turn frames toward a client's open sockets.
type StreamSink interface {
	Deliver(clientID uuid.UUID, frame *dto.StreamFrame)
}

// IConversationService defines the conversation service interface
type IConversationService interface {
	CreateConversation(ctx context.Context, clientId uuid.UUID, request *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error)
	ListConversations(ctx context.Context, clientId uuid.UUID) ([]*dto.ConversationSummaryResponse, error)
	GetConversation(ctx context.Context, clientId uuid.UUID, conversationId uuid.UUID) (*dto.GetConversationResponse, error)
	SendMessage(ctx context.Context, clientId uuid.UUID, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	GetCitationSource(ctx context.Context, clientId uuid.UUID, conversationId uuid.UUID, sourceId string) (*dto.CitationSourceResponse, error)
	DeleteConversation(ctx context.Context, clientId uuid.UUID, request *dto.DeleteConversationRequest) error
}

// conversationService coordinates the turn pipeline and conversation CRUD.
type conversationService struct {
	uowFactory   unitofwork.RepositoryFactory
	snapshotRepo *memory.SnapshotRepository
	publisher    IPublisherService
	sink         StreamSink
	logger       logger.ILogger

	sessionManager *ragsession.Manager
	historyLoader  *history.Loader
	retriever      *retriever.Retriever
	generator      *response.Generator
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	llmProvider llm.LLMProvider,
	reranker rerank.Reranker,
	sessionRepo *memory.SessionRepository,
	snapshotRepo *memory.SnapshotRepository,
	publisher IPublisherService,
	sink StreamSink,
	log logger.ILogger,
	retrieverOpts retriever.Options,
	generatorOpts response.Options,
) IConversationService {
	return &conversationService{
		uowFactory:   uowFactory,
		snapshotRepo: snapshotRepo,
		publisher:    publisher,
		sink:         sink,
		logger:       log,

		sessionManager: ragsession.NewManager(sessionRepo, log),
		historyLoader:  history.NewLoader(uowFactory),
		retriever:      retriever.NewRetriever(embeddingProvider, reranker, log, retrieverOpts),
		generator:      response.NewGenerator(llmProvider, log, generatorOpts),
	}
}

const defaultConversationTitle = "New conversation"

func (cs *conversationService) CreateConversation(ctx context.Context, clientId uuid.UUID, request *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	title := strings.TrimSpace(request.Title)
	if title == "" {
		title = defaultConversationTitle
	}

	conversation := entity.Conversation{
		Id:        uuid.New(),
		ClientId:  clientId,
		Title:     title,
		CreatedAt: time.Now(),
	}

	if err := uow.ConversationRepository().Create(ctx, &conversation); err != nil {
		return nil, err
	}

	return &dto.CreateConversationResponse{Id: conversation.Id}, nil
}

func (cs *conversationService) ListConversations(ctx context.Context, clientId uuid.UUID) ([]*dto.ConversationSummaryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	summaries, err := uow.ConversationRepository().ListSummaries(ctx, clientId)
	if err != nil {
		return nil, err
	}

	resp := make([]*dto.ConversationSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, &dto.ConversationSummaryResponse{
			Id:           s.Id,
			Title:        s.Title,
			FirstMessage: s.FirstMessage,
			MessageCount: s.MessageCount,
			LastUpdated:  s.LastUpdated,
		})
	}
	return resp, nil
}

// GetConversation resolves a full conversation view. A fresh fetch always
// wins over the snapshot cache; the snapshot is only served when the
// store itself is unreachable, with the conversation parked in
// resume-error so the client retries the load.
func (cs *conversationService) GetConversation(ctx context.Context, clientId uuid.UUID, conversationId uuid.UUID) (*dto.GetConversationResponse, error) {
	resp, err := cs.fetchConversation(ctx, clientId, conversationId)
	if err == nil {
		cs.snapshotRepo.Save(snapshotFromResponse(resp))
		return resp, nil
	}

	var accessErr *accessError
	if errors.As(err, &accessErr) {
		return nil, err
	}

	cs.sessionManager.FailResume(conversationId, clientId)
	cs.logger.Error("Conversation", "load failed", map[string]interface{}{
		"conversation_id": conversationId.String(),
		"error":           err.Error(),
	})

	if snapshot, found := cs.snapshotRepo.Get(conversationId.String()); found {
		cached := responseFromSnapshot(snapshot)
		cached.State = store.StateResumeError
		cached.FromCache = true
		return cached, nil
	}
	return nil, err
}

func (cs *conversationService) fetchConversation(ctx context.Context, clientId uuid.UUID, conversationId uuid.UUID) (*dto.GetConversationResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.OwnedByClient{ClientID: clientId},
	)
	if err != nil {
		return nil, &ragerr.ConversationLoadError{ConversationID: conversationId, Err: err}
	}
	if conversation == nil {
		return nil, &accessError{resource: "conversation"}
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, &ragerr.ConversationLoadError{ConversationID: conversationId, Err: err}
	}

	citations, err := uow.CitationRepository().FindByConversation(ctx, conversationId)
	if err != nil {
		return nil, &ragerr.ConversationLoadError{ConversationID: conversationId, Err: err}
	}

	resp := &dto.GetConversationResponse{
		Id:        conversation.Id,
		Title:     conversation.Title,
		State:     cs.sessionManager.State(conversationId),
		Messages:  make([]dto.MessageDTO, 0, len(messages)),
		Citations: make([]dto.CitationDTO, 0, len(citations)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, dto.MessageDTO{
			Id:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			TurnIndex: m.TurnIndex,
			CreatedAt: m.CreatedAt,
		})
	}
	for i, c := range citations {
		resp.Citations = append(resp.Citations, dto.CitationDTO{
			SourceId:       c.SourceId,
			Title:          c.Title,
			Journal:        c.Journal,
			DisplayNumber:  i + 1, // derived from ledger order, never stored
			FirstCitedTurn: c.FirstCitedTurn,
		})
	}
	return resp, nil
}

// SendMessage accepts a turn: it claims the conversation, optimistically
// persists the user message, and runs generation. In streaming mode the
// turn detaches and fragments arrive over the websocket; with
// stream=false the call blocks until the turn commits and the full
// result rides back in the response.
func (cs *conversationService) SendMessage(ctx context.Context, clientId uuid.UUID, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: request.ConversationId},
		specification.OwnedByClient{ClientID: clientId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, &accessError{resource: "conversation"}
	}

	if _, err := cs.sessionManager.BeginTurn(request.ConversationId, clientId, request.Content); err != nil {
		return nil, err
	}

	turnCount, err := uow.MessageRepository().Count(ctx,
		specification.ByConversationID{ConversationID: request.ConversationId},
		specification.ByRole{Role: constant.MessageRoleUser},
	)
	if err != nil {
		cs.sessionManager.FailSend(request.ConversationId)
		return nil, err
	}
	turnIndex := int(turnCount)

	// History is captured before the optimistic insert so the new query
	// appears exactly once in the generation context.
	chatHistory, err := cs.historyLoader.LoadConversationHistory(ctx, request.ConversationId)
	if err != nil {
		cs.sessionManager.FailSend(request.ConversationId)
		return nil, err
	}

	userMessageId, err := cs.appendUserMessage(ctx, conversation, request.Content, turnIndex)
	if err != nil {
		cs.sessionManager.FailSend(request.ConversationId)
		return nil, err
	}
	cs.sessionManager.AttachPendingMessage(request.ConversationId, userMessageId)

	if request.Streaming() {
		go cs.runTurn(clientId, request.ConversationId, request.Content, turnIndex, userMessageId, chatHistory, request.SkipRetrieval, request.SkipRerank)
		return &dto.SendMessageResponse{
			ConversationId: request.ConversationId,
			UserMessageId:  userMessageId,
			TurnIndex:      turnIndex,
			State:          cs.sessionManager.State(request.ConversationId),
		}, nil
	}

	result, err := cs.runTurnFull(ctx, clientId, request.ConversationId, request.Content, turnIndex, userMessageId, chatHistory, request.SkipRetrieval, request.SkipRerank)
	if err != nil {
		return nil, err
	}
	return &dto.SendMessageResponse{
		ConversationId: request.ConversationId,
		UserMessageId:  userMessageId,
		TurnIndex:      turnIndex,
		State:          cs.sessionManager.State(request.ConversationId),
		Result:         result,
	}, nil
}

// appendUserMessage persists the optimistic user message. The same id is
// reused for the raw row so a failed turn rolls back both with one handle.
func (cs *conversationService) appendUserMessage(ctx context.Context, conversation *entity.Conversation, content string, turnIndex int) (uuid.UUID, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()
	messageId := uuid.New()

	userMessage := entity.Message{
		Id:             messageId,
		ConversationId: conversation.Id,
		Role:           constant.MessageRoleUser,
		Content:        content,
		TurnIndex:      turnIndex,
		CreatedAt:      now,
	}
	userRaw := entity.MessageRaw{
		Id:             messageId,
		ConversationId: conversation.Id,
		Role:           constant.MessageRoleUser,
		Content:        content,
		TurnIndex:      turnIndex,
		CreatedAt:      now,
	}

	if err := uow.Begin(ctx); err != nil {
		return uuid.Nil, err
	}
	defer uow.Rollback()

	if err := uow.MessageRepository().Create(ctx, &userMessage); err != nil {
		return uuid.Nil, err
	}
	if err := uow.MessageRawRepository().Create(ctx, &userRaw); err != nil {
		return uuid.Nil, err
	}

	if turnIndex == 0 && conversation.Title == defaultConversationTitle {
		conversation.Title = truncateTitle(content)
	}
	conversation.UpdatedAt = &now
	if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
		return uuid.Nil, err
	}

	if err := uow.Commit(); err != nil {
		return uuid.Nil, err
	}
	return messageId, nil
}

// turnCandidates resolves the grounded set for one turn, honoring the
// per-request toggles. Skipping retrieval yields an empty set: the reply
// leans on conversation history alone and cannot cite new sources.
func (cs *conversationService) turnCandidates(ctx context.Context, conversationId uuid.UUID, query string, turnIndex int, skipRetrieval, skipRerank bool) ([]store.Candidate, error) {
	if skipRetrieval {
		return nil, nil
	}
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	return cs.retriever.Retrieve(ctx, uow, conversationId, query, turnIndex, skipRerank)
}

// runTurn executes retrieval, generation, and the citation commit for one
// accepted turn. It runs detached from the request context: an abandoned
// HTTP request does not abort a turn already in flight.
func (cs *conversationService) runTurn(clientId, conversationId uuid.UUID, query string, turnIndex int, userMessageId uuid.UUID, chatHistory []llm.Message, skipRetrieval, skipRerank bool) {
	ctx := context.Background()

	candidates, err := cs.turnCandidates(ctx, conversationId, query, turnIndex, skipRetrieval, skipRerank)
	if err != nil {
		cs.failTurn(ctx, clientId, conversationId, userMessageId, turnIndex, err)
		return
	}

	turnPrompt := prompt.NewGroundedBuilder(query, candidates).Build()
	stream, err := cs.generator.GenerateStream(ctx, turnPrompt, chatHistory)
	if err != nil {
		cs.failTurn(ctx, clientId, conversationId, userMessageId, turnIndex, err)
		return
	}

	var rawReply strings.Builder
	firstToken := true
	for delta := range stream {
		if delta.Err != nil {
			cs.failTurn(ctx, clientId, conversationId, userMessageId, turnIndex, delta.Err)
			return
		}
		if delta.Done {
			break
		}
		if firstToken {
			firstToken = false
			cs.sessionManager.MarkStreaming(conversationId)
			cs.sink.Deliver(clientId, &dto.StreamFrame{
				Type:           dto.StreamFrameState,
				ConversationId: conversationId,
				State:          store.StateStreaming,
			})
		}
		rawReply.WriteString(delta.Content)
		cs.sink.Deliver(clientId, &dto.StreamFrame{
			Type:           dto.StreamFrameToken,
			ConversationId: conversationId,
			Content:        delta.Content,
		})
	}

	cs.sessionManager.MarkUpdatingCitations(conversationId)
	cs.sink.Deliver(clientId, &dto.StreamFrame{
		Type:           dto.StreamFrameState,
		ConversationId: conversationId,
		State:          store.StateUpdatingCitations,
	})

	result, err := cs.commitTurn(ctx, conversationId, query, rawReply.String(), turnIndex, userMessageId, candidates)
	if err != nil {
		cs.failTurn(ctx, clientId, conversationId, userMessageId, turnIndex, err)
		return
	}

	cs.sessionManager.Complete(conversationId)
	cs.sink.Deliver(clientId, &dto.StreamFrame{
		Type:           dto.StreamFrameComplete,
		ConversationId: conversationId,
		Result:         result,
	})

	cs.refreshSnapshot(ctx, clientId, conversationId)
	cs.publishEvent(ctx, events.NewTurnCompleted(conversationId, result.Reply.Id, turnIndex, len(result.Citations)))
}

// runTurnFull is the blocking complete-response path. It walks the same
// pipeline as runTurn but collects the whole reply in one call and skips
// the streaming state: the machine goes loading straight to
// updating-citations, and no frames are emitted for a successful turn.
func (cs *conversationService) runTurnFull(ctx context.Context, clientId, conversationId uuid.UUID, query string, turnIndex int, userMessageId uuid.UUID, chatHistory []llm.Message, skipRetrieval, skipRerank bool) (*dto.TurnResultResponse, error) {
	candidates, err := cs.turnCandidates(ctx, conversationId, query, turnIndex, skipRetrieval, skipRerank)
	if err != nil {
		cs.failTurn(ctx, clientId, conversationId, userMessageId, turnIndex, err)
		return nil, err
	}

	turnPrompt := prompt.NewGroundedBuilder(query, candidates).Build()
	rawReply, err := cs.generator.Generate(ctx, turnPrompt, chatHistory)
	if err != nil {
		cs.failTurn(ctx, clientId, conversationId, userMessageId, turnIndex, err)
		return nil, err
	}

	cs.sessionManager.MarkUpdatingCitations(conversationId)

	result, err := cs.commitTurn(ctx, conversationId, query, rawReply, turnIndex, userMessageId, candidates)
	if err != nil {
		cs.failTurn(ctx, clientId, conversationId, userMessageId, turnIndex, err)
		return nil, err
	}

	cs.sessionManager.Complete(conversationId)
	cs.refreshSnapshot(ctx, clientId, conversationId)
	cs.publishEvent(ctx, events.NewTurnCompleted(conversationId, result.Reply.Id, turnIndex, len(result.Citations)))
	return result, nil
}

// commitTurn atomically persists the assistant reply, its grounding
// records, and any new ledger entries.
func (cs *conversationService) commitTurn(ctx context.Context, conversationId uuid.UUID, query, rawReply string, turnIndex int, userMessageId uuid.UUID, candidates []store.Candidate) (*dto.TurnResultResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.CitationRepository().FindByConversation(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	entries := make([]*citation.Entry, 0, len(existing))
	for _, c := range existing {
		entries = append(entries, &citation.Entry{
			SourceID:       c.SourceId,
			Title:          c.Title,
			Journal:        c.Journal,
			FirstCitedTurn: c.FirstCitedTurn,
			Position:       c.Position,
		})
	}
	ledger := citation.LedgerFromEntries(entries)

	grounded := make(map[string]citation.SourceMeta, len(candidates))
	for _, c := range candidates {
		if c.SourceID == "" {
			continue
		}
		if _, ok := grounded[c.SourceID]; !ok {
			grounded[c.SourceID] = citation.SourceMeta{Title: c.Title, Journal: c.Journal}
		}
	}

	rewrite := ledger.Rewrite(rawReply, grounded, turnIndex)
	if len(rewrite.UnknownSources) > 0 {
		cs.logger.Warn("Conversation", "reply cited ungrounded sources", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"source_ids":      rewrite.UnknownSources,
		})
	}

	now := time.Now()
	replyId := uuid.New()
	replyMessage := entity.Message{
		Id:             replyId,
		ConversationId: conversationId,
		Role:           constant.MessageRoleAssistant,
		Content:        rewrite.Rendered,
		TurnIndex:      turnIndex,
		CreatedAt:      now,
	}
	replyRaw := entity.MessageRaw{
		Id:             replyId,
		ConversationId: conversationId,
		Role:           constant.MessageRoleAssistant,
		Content:        rawReply,
		TurnIndex:      turnIndex,
		CreatedAt:      now,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.MessageRepository().Create(ctx, &replyMessage); err != nil {
		return nil, err
	}
	if err := uow.MessageRawRepository().Create(ctx, &replyRaw); err != nil {
		return nil, err
	}

	if sources := groundingRecords(replyId, rawReply, grounded, candidates); len(sources) > 0 {
		if err := uow.MessageSourceRepository().CreateBulk(ctx, sources); err != nil {
			return nil, err
		}
	}

	if len(rewrite.NewEntries) > 0 {
		newCitations := make([]*entity.Citation, 0, len(rewrite.NewEntries))
		for _, e := range rewrite.NewEntries {
			newCitations = append(newCitations, &entity.Citation{
				Id:             uuid.New(),
				ConversationId: conversationId,
				SourceId:       e.SourceID,
				Title:          e.Title,
				Journal:        e.Journal,
				FirstCitedTurn: e.FirstCitedTurn,
				Position:       e.Position,
				CreatedAt:      now,
			})
		}
		if err := uow.CitationRepository().CreateBulk(ctx, newCitations); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	citationDTOs := make([]dto.CitationDTO, 0, ledger.Len())
	for i, e := range ledger.Entries() {
		citationDTOs = append(citationDTOs, dto.CitationDTO{
			SourceId:       e.SourceID,
			Title:          e.Title,
			Journal:        e.Journal,
			DisplayNumber:  i + 1,
			FirstCitedTurn: e.FirstCitedTurn,
		})
	}

	return &dto.TurnResultResponse{
		ConversationId: conversationId,
		Sent: &dto.MessageDTO{
			Id:        userMessageId,
			Role:      constant.MessageRoleUser,
			Content:   query,
			TurnIndex: turnIndex,
			CreatedAt: now,
		},
		Reply: &dto.MessageDTO{
			Id:        replyId,
			Role:      constant.MessageRoleAssistant,
			Content:   rewrite.Rendered,
			TurnIndex: turnIndex,
			CreatedAt: now,
		},
		Citations: citationDTOs,
	}, nil
}

// groundingRecords links the reply to every candidate passage whose
// source it actually cited. These rows power carry-forward retrieval on
// the following turns.
func groundingRecords(replyId uuid.UUID, rawReply string, grounded map[string]citation.SourceMeta, candidates []store.Candidate) []*entity.MessageSource {
	cited := make(map[string]bool)
	for _, m := range citation.ParseMarkers(rawReply).Markers {
		if _, ok := grounded[m.SourceID]; ok {
			cited[m.SourceID] = true
		}
	}
	if len(cited) == 0 {
		return nil
	}

	sources := make([]*entity.MessageSource, 0, len(candidates))
	for _, c := range candidates {
		if !cited[c.SourceID] {
			continue
		}
		passageId, err := uuid.Parse(c.PassageID)
		if err != nil {
			continue
		}
		sources = append(sources, &entity.MessageSource{
			Id:        uuid.New(),
			MessageId: replyId,
			PassageId: passageId,
			CreatedAt: time.Now(),
		})
	}
	return sources
}

// failTurn rolls back the optimistic user message, parks the conversation
// in send-error, and notifies the client. The rendered history ends up
// exactly as it was before the send.
func (cs *conversationService) failTurn(ctx context.Context, clientId, conversationId, userMessageId uuid.UUID, turnIndex int, cause error) {
	cs.logger.Error("Conversation", "turn failed", map[string]interface{}{
		"conversation_id": conversationId.String(),
		"turn_index":      turnIndex,
		"error":           cause.Error(),
	})

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		cs.logger.Error("Conversation", "optimistic rollback begin failed", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"message_id":      userMessageId.String(),
			"error":           err.Error(),
		})
	} else {
		rollbackFailed := false
		if err := uow.MessageRepository().Delete(ctx, userMessageId); err != nil {
			rollbackFailed = true
		}
		if err := uow.MessageRawRepository().Delete(ctx, userMessageId); err != nil {
			rollbackFailed = true
		}
		if rollbackFailed {
			uow.Rollback()
			cs.logger.Error("Conversation", "optimistic rollback failed", map[string]interface{}{
				"conversation_id": conversationId.String(),
				"message_id":      userMessageId.String(),
			})
		} else if err := uow.Commit(); err != nil {
			cs.logger.Error("Conversation", "optimistic rollback commit failed", map[string]interface{}{
				"conversation_id": conversationId.String(),
				"error":           err.Error(),
			})
		}
	}

	cs.sessionManager.FailSend(conversationId)
	cs.sink.Deliver(clientId, &dto.StreamFrame{
		Type:           dto.StreamFrameError,
		ConversationId: conversationId,
		Error:          cause.Error(),
	})
	cs.publishEvent(ctx, events.NewTurnFailed(conversationId, turnIndex, cause.Error()))
}

// GetCitationSource resolves one ledger entry to its source document.
// The source must already be cited in the conversation; passages that
// were retrieved but never cited are not exposed here.
func (cs *conversationService) GetCitationSource(ctx context.Context, clientId uuid.UUID, conversationId uuid.UUID, sourceId string) (*dto.CitationSourceResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.OwnedByClient{ClientID: clientId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, &accessError{resource: "conversation"}
	}

	citations, err := uow.CitationRepository().FindByConversation(ctx, conversationId)
	if err != nil {
		return nil, err
	}
	var cited *entity.Citation
	displayNumber := 0
	for i, c := range citations {
		if c.SourceId == sourceId {
			cited = c
			displayNumber = i + 1
			break
		}
	}
	if cited == nil {
		return nil, &accessError{resource: "citation"}
	}

	resp := &dto.CitationSourceResponse{
		SourceId:      cited.SourceId,
		Title:         cited.Title,
		Journal:       cited.Journal,
		DisplayNumber: displayNumber,
	}

	document, err := uow.DocumentRepository().FindOne(ctx, specification.BySourceID{SourceID: sourceId})
	if err != nil {
		return nil, err
	}
	if document != nil {
		resp.Title = document.Title
		resp.Journal = document.Journal
		resp.Metadata = document.Metadata
	}
	return resp, nil
}

func (cs *conversationService) DeleteConversation(ctx context.Context, clientId uuid.UUID, request *dto.DeleteConversationRequest) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: request.ConversationId},
		specification.OwnedByClient{ClientID: clientId},
	)
	if err != nil {
		return err
	}
	if conversation == nil {
		return &accessError{resource: "conversation"}
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	// message_sources cascade off the hard message delete
	if err := uow.MessageRepository().DeleteByConversationId(ctx, request.ConversationId); err != nil {
		return err
	}
	if err := uow.MessageRawRepository().DeleteByConversationId(ctx, request.ConversationId); err != nil {
		return err
	}
	if err := uow.CitationRepository().DeleteByConversationId(ctx, request.ConversationId); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, request.ConversationId); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	cs.snapshotRepo.Delete(request.ConversationId.String())
	cs.sessionManager.Release(request.ConversationId)
	cs.publishEvent(ctx, events.NewConversationDeleted(request.ConversationId, clientId))
	return nil
}

// refreshSnapshot rebuilds the cached view from the committed state. It
// runs after every completed turn whether or not any socket is currently
// viewing the conversation, so a later revisit renders instantly.
func (cs *conversationService) refreshSnapshot(ctx context.Context, clientId, conversationId uuid.UUID) {
	resp, err := cs.fetchConversation(ctx, clientId, conversationId)
	if err != nil {
		cs.logger.Warn("Conversation", "snapshot refresh failed", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"error":           err.Error(),
		})
		return
	}
	cs.snapshotRepo.Save(snapshotFromResponse(resp))
}

func (cs *conversationService) publishEvent(ctx context.Context, event events.BaseEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := cs.publisher.Publish(ctx, payload); err != nil {
		cs.logger.Warn("Conversation", "event publish failed", map[string]interface{}{
			"event": event.Type,
			"error": err.Error(),
		})
	}
}

func truncateTitle(content string) string {
	title := []rune(strings.TrimSpace(content))
	if len(title) > 80 {
		title = title[:80]
	}
	return string(title)
}

func snapshotFromResponse(resp *dto.GetConversationResponse) *store.Snapshot {
	snapshot := &store.Snapshot{
		ConversationID: resp.Id.String(),
		Messages:       make([]store.SnapshotMessage, 0, len(resp.Messages)),
		Citations:      make([]store.SnapshotCitation, 0, len(resp.Citations)),
	}
	for _, m := range resp.Messages {
		snapshot.Messages = append(snapshot.Messages, store.SnapshotMessage{
			ID:        m.Id.String(),
			Role:      m.Role,
			Content:   m.Content,
			TurnIndex: m.TurnIndex,
			CreatedAt: m.CreatedAt,
		})
	}
	for _, c := range resp.Citations {
		snapshot.Citations = append(snapshot.Citations, store.SnapshotCitation{
			SourceID:       c.SourceId,
			Title:          c.Title,
			Journal:        c.Journal,
			DisplayNumber:  c.DisplayNumber,
			FirstCitedTurn: c.FirstCitedTurn,
		})
	}
	return snapshot
}

func responseFromSnapshot(snapshot *store.Snapshot) *dto.GetConversationResponse {
	resp := &dto.GetConversationResponse{
		Messages:  make([]dto.MessageDTO, 0, len(snapshot.Messages)),
		Citations: make([]dto.CitationDTO, 0, len(snapshot.Citations)),
	}
	if id, err := uuid.Parse(snapshot.ConversationID); err == nil {
		resp.Id = id
	}
	for _, m := range snapshot.Messages {
		msg := dto.MessageDTO{
			Role:      m.Role,
			Content:   m.Content,
			TurnIndex: m.TurnIndex,
			CreatedAt: m.CreatedAt,
		}
		if id, err := uuid.Parse(m.ID); err == nil {
			msg.Id = id
		}
		resp.Messages = append(resp.Messages, msg)
	}
	for _, c := range snapshot.Citations {
		resp.Citations = append(resp.Citations, dto.CitationDTO{
			SourceId:       c.SourceID,
			Title:          c.Title,
			Journal:        c.Journal,
			DisplayNumber:  c.DisplayNumber,
			FirstCitedTurn: c.FirstCitedTurn,
		})
	}
	return resp
}

// accessError marks not-found / not-owned resources. It maps to 404 at
// the transport layer and never triggers resume-error handling.
type accessError struct {
	resource string
}

func (e *accessError) Error() string {
	return fmt.Sprintf("%s not found or access denied", e.resource)
}

// IsAccessDenied reports whether err means the resource does not exist or
// belongs to another client. The transport layer maps it to 404.
func IsAccessDenied(err error) bool {
	var ae *accessError
	return errors.As(err, &ae)
}

