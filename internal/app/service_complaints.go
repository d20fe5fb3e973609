package app

import (
	"context"
	"errors"
	"net/url"

	"civicvoice/internal/attachment"
	"civicvoice/internal/complaint"
	"civicvoice/internal/rbac"
	"civicvoice/internal/store"
	"civicvoice/internal/util"

	"go.uber.org/zap"
)

// CreateComplaint files a Pending complaint owned by the actor. An optional
// upload is stored before the row and removed again if the row write fails.
func (s *Service) CreateComplaint(ctx context.Context, actor Actor, in complaint.Input, upload *attachment.Upload) (complaint.Complaint, error) {
	if err := in.Validate(); err != nil {
		return complaint.Complaint{}, validationFailed(err)
	}
	if upload != nil {
		if s.attachments == nil {
			return complaint.Complaint{}, fieldInvalid("image", "Image uploads are not enabled.")
		}
		if err := upload.Validate(); err != nil {
			return complaint.Complaint{}, fieldInvalid("image", attachmentMessage(err))
		}
	}
	if err := requirePrincipal(actor); err != nil {
		return complaint.Complaint{}, err
	}
	if !rbac.Can(actor.Role, rbac.ActionComplaintCreate) {
		return complaint.Complaint{}, s.deny(ctx, actor, rbac.ActionComplaintCreate, "", "You cannot file complaints")
	}

	c := complaint.New(util.NewID("cmp"), actor.ID(), in, s.now())
	if upload != nil {
		key, err := s.attachments.Put(ctx, c.ID, *upload)
		if err != nil {
			s.log(ctx).Error("attachment upload failed", zap.String("complaint_id", c.ID), zap.Error(err))
			return complaint.Complaint{}, attachmentFailed(err)
		}
		c.AttachmentKey = key
		c.AttachmentType = attachment.NormalizeType(upload.ContentType)
	}

	if err := s.store.InsertComplaint(ctx, c); err != nil {
		s.log(ctx).Error("insert complaint failed", zap.String("complaint_id", c.ID), zap.Error(err))
		s.removeAttachment(ctx, c)
		return complaint.Complaint{}, persistenceDenied(err)
	}

	s.metrics.IncrementComplaintsCreated()
	s.log(ctx).Info("complaint created",
		zap.String("complaint_id", c.ID),
		zap.String("principal_id", actor.ID()),
		zap.String("category", string(c.Category)),
	)
	return c, nil
}

func (s *Service) GetComplaint(ctx context.Context, actor Actor, id string) (complaint.Complaint, error) {
	if err := requirePrincipal(actor); err != nil {
		return complaint.Complaint{}, err
	}
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return complaint.Complaint{}, err
	}
	if !complaint.CanRead(actor.Role, actor.ID(), c) {
		return complaint.Complaint{}, s.deny(ctx, actor, rbac.ActionComplaintReadOwn, id, "You can only view your own complaints")
	}
	return c, nil
}

// ListComplaints narrows to the actor's scope at the storage layer and only
// then applies the text filter and pagination.
func (s *Service) ListComplaints(ctx context.Context, actor Actor, q complaint.Query) (complaint.Page, error) {
	if err := requirePrincipal(actor); err != nil {
		return complaint.Page{}, err
	}
	q = q.Normalize()
	scope := complaint.ScopeFor(actor.Role, actor.ID())

	filter := store.ComplaintFilter{
		Status: string(q.Status),
		Oldest: q.Sort == complaint.SortOldest,
	}
	if !scope.All {
		filter.OwnerID = scope.OwnerID
	}
	items, err := s.store.ListComplaints(ctx, filter)
	if err != nil {
		s.log(ctx).Error("list complaints failed", zap.Error(err))
		return complaint.Page{}, storageUnavailable(err)
	}
	return complaint.Apply(scope, items, q), nil
}

// TransitionStatus moves a complaint to a new status. When expectedRevision
// is nil the revision read here is used, so only a concurrent write between
// the read and the update conflicts.
func (s *Service) TransitionStatus(ctx context.Context, actor Actor, id string, to complaint.Status, expectedRevision *int64) (complaint.Complaint, error) {
	if err := requirePrincipal(actor); err != nil {
		return complaint.Complaint{}, err
	}
	if !complaint.CanTransition(actor.Role) {
		return complaint.Complaint{}, s.deny(ctx, actor, rbac.ActionComplaintTransition, id, "Only administrators can change complaint status")
	}
	current, err := s.loadComplaint(ctx, id)
	if err != nil {
		return complaint.Complaint{}, err
	}
	if !complaint.AllowedTransition(current.Status, to) {
		return complaint.Complaint{}, fieldInvalid("status", "Unknown complaint status.")
	}

	revision := current.Revision
	if expectedRevision != nil && *expectedRevision != revision {
		return complaint.Complaint{}, staleRevision(current)
	}

	updated, ok, err := s.store.UpdateComplaintStatus(ctx, id, to, revision)
	if err != nil {
		s.log(ctx).Error("update complaint status failed", zap.String("complaint_id", id), zap.Error(err))
		return complaint.Complaint{}, persistenceDenied(err)
	}
	if !ok {
		latest, err := s.loadComplaint(ctx, id)
		if err != nil {
			return complaint.Complaint{}, err
		}
		return complaint.Complaint{}, staleRevision(latest)
	}

	s.metrics.IncrementTransition(string(current.Status), string(updated.Status))
	s.log(ctx).Info("complaint status changed",
		zap.String("complaint_id", id),
		zap.String("principal_id", actor.ID()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)),
		zap.Int64("revision", updated.Revision),
	)
	return updated, nil
}

func (s *Service) DeleteComplaint(ctx context.Context, actor Actor, id string) error {
	if err := requirePrincipal(actor); err != nil {
		return err
	}
	c, err := s.loadComplaint(ctx, id)
	if err != nil {
		return err
	}
	if !complaint.CanDelete(actor.Role, actor.ID(), c) {
		action := rbac.ActionComplaintDeleteOwn
		message := "You can only delete your own pending complaints"
		if c.OwnerID != actor.ID() {
			action = rbac.ActionComplaintDeleteAny
			message = "You cannot delete this complaint"
		}
		return s.deny(ctx, actor, action, id, message)
	}

	deleted, err := s.store.DeleteComplaint(ctx, id)
	if err != nil {
		s.log(ctx).Error("delete complaint failed", zap.String("complaint_id", id), zap.Error(err))
		return persistenceDenied(err)
	}
	if !deleted {
		return notFound("Complaint not found")
	}
	s.removeAttachment(ctx, c)

	s.metrics.IncrementDeleted(string(actor.Role))
	s.log(ctx).Info("complaint deleted", zap.String("complaint_id", id), zap.String("principal_id", actor.ID()))
	return nil
}

// AttachmentURL returns a short-lived download link for the complaint's file.
func (s *Service) AttachmentURL(ctx context.Context, actor Actor, id string) (*url.URL, error) {
	c, err := s.GetComplaint(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !c.HasAttachment() || s.attachments == nil {
		return nil, notFound("Complaint has no attachment")
	}
	link, err := s.attachments.URL(ctx, c.AttachmentKey)
	if err != nil {
		s.log(ctx).Error("presign attachment failed", zap.String("complaint_id", id), zap.Error(err))
		return nil, attachmentFailed(err)
	}
	return link, nil
}

func (s *Service) loadComplaint(ctx context.Context, id string) (complaint.Complaint, error) {
	c, err := s.store.GetComplaint(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return complaint.Complaint{}, notFound("Complaint not found")
	}
	if err != nil {
		s.log(ctx).Error("load complaint failed", zap.String("complaint_id", id), zap.Error(err))
		return complaint.Complaint{}, storageUnavailable(err)
	}
	return c, nil
}

func (s *Service) removeAttachment(ctx context.Context, c complaint.Complaint) {
	if !c.HasAttachment() || s.attachments == nil {
		return
	}
	if err := s.attachments.Remove(ctx, c.AttachmentKey); err != nil {
		s.log(ctx).Warn("remove attachment failed", zap.String("complaint_id", c.ID), zap.Error(err))
	}
}

func staleRevision(current complaint.Complaint) error {
	return conflict("Complaint was changed by someone else", map[string]any{
		"currentStatus":   current.Status,
		"currentRevision": current.Revision,
	})
}

func attachmentMessage(err error) string {
	switch {
	case errors.Is(err, attachment.ErrTooLarge):
		return "Image must be 5 MB or smaller."
	case errors.Is(err, attachment.ErrUnsupportedType):
		return "Image must be a JPEG, PNG or PDF file."
	case errors.Is(err, attachment.ErrEmpty):
		return "Image file is empty."
	default:
		return "Image could not be read."
	}
}
