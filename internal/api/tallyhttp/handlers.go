package tallyhttp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/services/reports"
	"github.com/BearBump/TruckTally/internal/tracker"
)

func (a *API) createInspection(w http.ResponseWriter, r *http.Request) {
	var req inspectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := a.inspections.Create(r.Context(), ActorFrom(r.Context()), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInspectionDTO(in))
}

func (a *API) listInspections(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := a.inspections.List(r.Context(), ActorFrom(r.Context()), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]inspectionDTO, 0, len(items))
	for _, in := range items {
		out = append(out, toInspectionDTO(in))
	}
	writeJSON(w, http.StatusOK, map[string]any{"inspections": out})
}

func (a *API) getInspection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := a.inspections.Get(r.Context(), ActorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailsDTO(d))
}

func (a *API) updateInspection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req inspectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := a.inspections.Update(r.Context(), ActorFrom(r.Context()), id, req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInspectionDTO(in))
}

func (a *API) deleteInspection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.inspections.Delete(r.Context(), ActorFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	initial, err := req.Initial.toModel()
	if err != nil {
		writeError(w, r, err)
		return
	}
	final, err := req.Final.toModel()
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := a.trucks.CreateRecord(r.Context(), ActorFrom(r.Context()), models.CreateRecordInput{
		InspectionID: id,
		PlateNumber:  req.PlateNumber,
		Initial:      initial,
		Final:        final,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(rec, nil))
}

func (a *API) editRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req editRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	initial, err := req.Initial.toModel()
	if err != nil {
		writeError(w, r, err)
		return
	}
	final, err := req.Final.toModel()
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := a.trucks.EditRecord(r.Context(), ActorFrom(r.Context()), models.EditRecordInput{
		RecordID:    id,
		PlateNumber: req.PlateNumber,
		Initial:     initial,
		Final:       final,
		BerthNote:   req.BerthNote,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec, nil))
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request) {
	inspectionID, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	recordID, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.trucks.DeleteRecord(r.Context(), ActorFrom(r.Context()), inspectionID, recordID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResultDTO{
		AlreadyRemoved: res.AlreadyRemoved,
		SerialNumber:   res.SerialNumber,
		Renumbered:     res.Renumbered,
	})
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := recordFilterFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := a.trucks.ListRecords(r.Context(), ActorFrom(r.Context()), id, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordListDTO(list))
}

// recordFilterFrom: ?from=&to=&page=&pageSize=&sort=desc, pageSize=all — без страниц.
func recordFilterFrom(r *http.Request) (models.RecordFilter, error) {
	var f models.RecordFilter
	var err error
	if f.From, err = queryLocal(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryLocal(r, "to"); err != nil {
		return f, err
	}
	if f.Page, err = queryInt(r, "page", 1); err != nil {
		return f, err
	}
	if f.PageSize, err = pageSizeFrom(r); err != nil {
		return f, err
	}
	f.Descending = strings.EqualFold(r.URL.Query().Get("sort"), "desc")
	return f, nil
}

func pageSizeFrom(r *http.Request) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get("pageSize"))
	if strings.EqualFold(s, "all") {
		return tracker.PageSizeAll, nil
	}
	return queryInt(r, "pageSize", tracker.DefaultPageSize)
}

func (a *API) statusBoard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := pageSizeFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := a.trucks.StatusBoard(r.Context(), ActorFrom(r.Context()), id, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBoardDTO(b))
}

func (a *API) startCargoOps(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, true)
}

func (a *API) completeCargoOps(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, false)
}

func (a *API) transition(w http.ResponseWriter, r *http.Request, start bool) {
	id, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	actor := ActorFrom(r.Context())
	op := a.trucks.CompleteCargoOps
	if start {
		op = a.trucks.StartCargoOps
	}
	res, err := op(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionDTO{Record: toRecordDTO(res.Record, nil), Outcome: res.Outcome.String()})
}

func (a *API) plateHints(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	hints, err := a.trucks.PlateHints(r.Context(), ActorFrom(r.Context()), id, r.URL.Query().Get("term"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plates": hints})
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	evs, err := a.trucks.History(r.Context(), ActorFrom(r.Context()), id, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": toEventDTOs(evs)})
}

func (a *API) exportExcel(w http.ResponseWriter, r *http.Request) {
	a.export(w, r, a.reports.Excel)
}

func (a *API) exportPDF(w http.ResponseWriter, r *http.Request) {
	a.export(w, r, a.reports.PDF)
}

func (a *API) export(w http.ResponseWriter, r *http.Request, build func(context.Context, models.Actor, reports.Request) (*reports.File, error)) {
	id, err := pathID(r, "inspectionID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := reports.Request{
		InspectionID: id,
		PrintAll:     queryBool(r, "all"),
		IncludeTimes: queryBool(r, "includeTimes"),
	}
	if req.From, err = queryLocal(r, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.To, err = queryLocal(r, "to"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.From == nil && req.To == nil {
		req.PrintAll = true
	}

	f, err := build(r.Context(), ActorFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Body)
}

func (a *API) createFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := a.feedback.Create(r.Context(), ActorFrom(r.Context()), models.FeedbackInput{
		UserEmail: req.UserEmail,
		Message:   req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFeedbackDTO(f))
}

func (a *API) listFeedback(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := a.feedback.List(r.Context(), ActorFrom(r.Context()), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]feedbackDTO, 0, len(items))
	for _, f := range items {
		out = append(out, toFeedbackDTO(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": out})
}

func (a *API) getFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ticketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := a.feedback.Get(r.Context(), ActorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeedbackDTO(f))
}

func (a *API) saveFeedbackNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ticketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req feedbackNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := a.feedback.SaveNote(r.Context(), ActorFrom(r.Context()), id, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeedbackDTO(f))
}
