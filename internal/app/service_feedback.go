package app

import (
	"context"
	"errors"
	"time"

	"civicvoice/internal/complaint"
	"civicvoice/internal/feedback"
	"civicvoice/internal/rbac"
	"civicvoice/internal/sentiment"
	"civicvoice/internal/store"
	"civicvoice/internal/util"
	"civicvoice/internal/validation"

	"go.uber.org/zap"
)

// SubmitFeedback classifies the comments synchronously and persists the
// feedback only with its sentiment. A classifier failure and a rejected
// write are reported as different errors.
func (s *Service) SubmitFeedback(ctx context.Context, actor Actor, complaintID string, in feedback.Input) (feedback.Feedback, error) {
	if err := in.Validate(); err != nil {
		return feedback.Feedback{}, validationFailed(err)
	}
	if err := requirePrincipal(actor); err != nil {
		return feedback.Feedback{}, err
	}
	c, err := s.loadComplaint(ctx, complaintID)
	if err != nil {
		return feedback.Feedback{}, err
	}
	if c.OwnerID != actor.ID() || !rbac.Can(actor.Role, rbac.ActionFeedbackSubmit) {
		return feedback.Feedback{}, s.deny(ctx, actor, rbac.ActionFeedbackSubmit, complaintID, "Only the citizen who filed this complaint can leave feedback")
	}
	if s.cfg.FeedbackRequireResolved && c.Status != complaint.StatusResolved {
		return feedback.Feedback{}, fieldInvalid("complaintId", "Feedback can only be left on resolved complaints.")
	}

	result, err := s.classify(ctx, in.Comments, complaintID)
	if err != nil {
		return feedback.Feedback{}, err
	}

	fb := feedback.New(util.NewID("fb"), c, actor.ID(), in, result, s.modelName, s.now())
	if err := s.store.InsertFeedback(ctx, fb); err != nil {
		s.log(ctx).Error("insert feedback failed",
			zap.String("complaint_id", complaintID),
			zap.String("sentiment", string(result.Sentiment)),
			zap.Error(err),
		)
		return feedback.Feedback{}, persistenceDenied(err)
	}

	s.metrics.IncrementFeedback(string(fb.Sentiment))
	s.log(ctx).Info("feedback submitted",
		zap.String("feedback_id", fb.ID),
		zap.String("complaint_id", complaintID),
		zap.Int("rating", fb.Rating),
		zap.String("sentiment", string(fb.Sentiment)),
	)
	return fb, nil
}

// ListFeedback pages feedback newest first: everything for administrators,
// the actor's own records otherwise.
func (s *Service) ListFeedback(ctx context.Context, actor Actor, page, pageSize int) (feedback.Page, error) {
	if err := requirePrincipal(actor); err != nil {
		return feedback.Page{}, err
	}
	q := complaint.Query{Page: page, PageSize: pageSize}.Normalize()
	filter := store.FeedbackFilter{
		Limit:  q.PageSize,
		Offset: (q.Page - 1) * q.PageSize,
	}
	if !rbac.Can(actor.Role, rbac.ActionFeedbackReadAll) {
		filter.OwnerID = actor.ID()
	}
	items, total, err := s.store.ListFeedback(ctx, filter)
	if err != nil {
		s.log(ctx).Error("list feedback failed", zap.Error(err))
		return feedback.Page{}, storageUnavailable(err)
	}
	if items == nil {
		items = []feedback.Feedback{}
	}
	return feedback.Page{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}, nil
}

// AnalyzeSentiment runs the classifier on arbitrary text without storing anything.
func (s *Service) AnalyzeSentiment(ctx context.Context, actor Actor, text string) (sentiment.Result, error) {
	errs := validation.Errors{}
	errs.MinLength("feedbackText", text, 10, "Feedback must be at least 10 characters long.")
	errs.MaxLength("feedbackText", text, 5000, "Feedback must be at most 5000 characters.")
	if err := errs.Err(); err != nil {
		return sentiment.Result{}, validationFailed(err)
	}
	if err := requirePrincipal(actor); err != nil {
		return sentiment.Result{}, err
	}
	if !rbac.Can(actor.Role, rbac.ActionSentimentAnalyze) {
		return sentiment.Result{}, s.deny(ctx, actor, rbac.ActionSentimentAnalyze, "", "You cannot use the sentiment analyzer")
	}
	return s.classify(ctx, text, "")
}

func (s *Service) Summary(ctx context.Context, actor Actor) (store.Summary, error) {
	if err := requirePrincipal(actor); err != nil {
		return store.Summary{}, err
	}
	if !rbac.Can(actor.Role, rbac.ActionSummaryRead) {
		return store.Summary{}, s.deny(ctx, actor, rbac.ActionSummaryRead, "", "Only administrators can view the dashboard")
	}
	summary, err := s.store.Summary(ctx)
	if err != nil {
		s.log(ctx).Error("summary failed", zap.Error(err))
		return store.Summary{}, storageUnavailable(err)
	}
	return summary, nil
}

// classify makes exactly one classifier call bounded by the configured timeout.
func (s *Service) classify(ctx context.Context, text, complaintID string) (sentiment.Result, error) {
	if s.classifier == nil {
		s.metrics.IncrementClassifierFailure("unconfigured")
		return sentiment.Result{}, sentimentFailed(errors.New("sentiment classifier not configured"))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.SentimentTimeout)
	defer cancel()

	started := time.Now()
	result, err := s.classifier.Classify(callCtx, text)
	s.metrics.ObserveClassify(started)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, sentiment.ErrInvalidResponse):
			reason = "invalid_response"
		}
		s.metrics.IncrementClassifierFailure(reason)
		s.log(ctx).Error("sentiment classification failed",
			zap.String("complaint_id", complaintID),
			zap.String("reason", reason),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return sentiment.Result{}, sentimentFailed(err)
	}
	return result, nil
}
