package app

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"civicvoice/internal/attachment"
	"civicvoice/internal/complaint"
	"civicvoice/internal/feedback"

	"github.com/go-chi/chi/v5"
)

// multipart overhead allowed on top of the attachment itself
const formOverhead = 1 << 20

func (s *HTTPServer) handleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	var (
		input  complaint.Input
		upload *attachment.Upload
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		parsed, cleanup, err := parseComplaintForm(w, r)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		defer cleanup()
		input, upload = parsed.input, parsed.upload
	} else if err := decodeBody(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	created, err := s.service.CreateComplaint(r.Context(), actor, input, upload)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type complaintForm struct {
	input  complaint.Input
	upload *attachment.Upload
}

func parseComplaintForm(w http.ResponseWriter, r *http.Request) (complaintForm, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, attachment.MaxSize+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return complaintForm{}, noop, fieldInvalid("image", "Image must be 5 MB or smaller.")
		}
		return complaintForm{}, noop, fieldInvalid("request", "Invalid form submission.")
	}

	form := complaintForm{input: complaint.Input{
		Title:       r.FormValue("title"),
		Category:    r.FormValue("category"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
		Name:        r.FormValue("name"),
		Email:       r.FormValue("email"),
		Phone:       r.FormValue("phone"),
		Priority:    r.FormValue("priority"),
	}}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, cleanup, nil
	}
	if err != nil {
		cleanup()
		return complaintForm{}, noop, fieldInvalid("image", "Image could not be read.")
	}
	form.upload = &attachment.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	if err := attachment.SniffType(form.upload); err != nil {
		_ = file.Close()
		cleanup()
		return complaintForm{}, noop, fieldInvalid("image", attachmentMessage(err))
	}
	return form, func() {
		_ = file.Close()
		cleanup()
	}, nil
}

func (s *HTTPServer) handleListComplaints(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	query, err := complaintQuery(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	page, err := s.service.ListComplaints(r.Context(), actor, query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func complaintQuery(r *http.Request) (complaint.Query, error) {
	values := r.URL.Query()
	q := complaint.Query{Text: values.Get("q")}

	if raw := strings.TrimSpace(values.Get("status")); raw != "" && !strings.EqualFold(raw, "all") {
		status, ok := complaint.ParseStatus(raw)
		if !ok {
			return complaint.Query{}, fieldInvalid("status", "Unknown complaint status.")
		}
		q.Status = status
	}

	switch sortOrder := strings.ToLower(strings.TrimSpace(values.Get("sort"))); sortOrder {
	case "", string(complaint.SortNewest):
		q.Sort = complaint.SortNewest
	case string(complaint.SortOldest):
		q.Sort = complaint.SortOldest
	default:
		return complaint.Query{}, fieldInvalid("sort", "Sort must be newest or oldest.")
	}

	var err error
	if q.Page, err = queryInt(r, "page"); err != nil {
		return complaint.Query{}, err
	}
	if q.PageSize, err = queryInt(r, "pageSize"); err != nil {
		return complaint.Query{}, err
	}
	return q, nil
}

func (s *HTTPServer) handleGetComplaint(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	c, err := s.service.GetComplaint(r.Context(), actor, chi.URLParam(r, "complaintID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) handleTransitionStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Status   string `json:"status"`
		Revision *int64 `json:"revision"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	status, valid := complaint.ParseStatus(body.Status)
	if !valid {
		s.writeServiceError(w, r, fieldInvalid("status", "Unknown complaint status."))
		return
	}

	updated, err := s.service.TransitionStatus(r.Context(), actor, chi.URLParam(r, "complaintID"), status, body.Revision)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleDeleteComplaint(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteComplaint(r.Context(), actor, chi.URLParam(r, "complaintID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	link, err := s.service.AttachmentURL(r.Context(), actor, chi.URLParam(r, "complaintID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, link.String(), http.StatusTemporaryRedirect)
}

func (s *HTTPServer) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	var input feedback.Input
	if err := decodeBody(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	fb, err := s.service.SubmitFeedback(r.Context(), actor, chi.URLParam(r, "complaintID"), input)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

func (s *HTTPServer) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "pageSize")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.service.ListFeedback(r.Context(), actor, page, pageSize)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleAnalyzeSentiment(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	var body struct {
		FeedbackText string `json:"feedbackText"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.AnalyzeSentiment(r.Context(), actor, body.FeedbackText)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	summary, err := s.service.Summary(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
