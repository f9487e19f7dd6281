package main

import (
	"fmt"
	"net/http"

	"adminconsole/internal/data"
	"adminconsole/internal/value"
)

// formResult is the form-facing counterpart of data.MutationResult.
type formResult struct {
	OK     bool                       `json:"ok"`
	ID     string                     `json:"id,omitempty"`
	Errors map[string]data.FieldError `json:"errors,omitempty"`
}

// listHandler handles GET /v1/{entity}.
func (app *application) listHandler(svc *data.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := svc.List(r.Context())
		if err != nil {
			app.serviceErrorResponse(w, r, err)
			return
		}

		err = app.writeJSON(w, http.StatusOK, envelope{"data": docs}, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// showHandler handles GET /v1/{entity}/:id.
func (app *application) showHandler(svc *data.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.notFoundResponse(w, r)
			return
		}

		doc, err := svc.Get(r.Context(), id)
		if err != nil {
			app.serviceErrorResponse(w, r, err)
			return
		}
		if doc == nil {
			app.notFoundResponse(w, r)
			return
		}

		err = app.writeJSON(w, http.StatusOK, envelope{"data": doc}, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// createHandler handles POST /v1/{entity} with an API-shaped record.
func (app *application) createHandler(svc *data.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input value.Record
		if err := app.readJSON(w, r, &input); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			app.serviceErrorResponse(w, r, err)
			return
		}
		if !result.OK {
			app.writeResult(w, r, http.StatusUnprocessableEntity, result)
			return
		}

		app.logger.InfoWithContext(r.Context(), "record created", "entity", svc.Entity().Name, "id", result.ID)

		headers := make(http.Header)
		headers.Set("Location", fmt.Sprintf("/v1/%s/%s", svc.Entity().Name, result.ID))
		if err := app.writeJSON(w, http.StatusCreated, envelope{"data": result}, headers); err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

// updateHandler handles PUT /v1/{entity}/:id. Every declared field is
// replaced; fields missing from the body are cleared.
func (app *application) updateHandler(svc *data.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.notFoundResponse(w, r)
			return
		}

		var input value.Record
		if err := app.readJSON(w, r, &input); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}

		result, err := svc.Update(r.Context(), id, input)
		if err != nil {
			app.serviceErrorResponse(w, r, err)
			return
		}
		if !result.OK {
			app.writeResult(w, r, http.StatusUnprocessableEntity, result)
			return
		}

		app.logger.InfoWithContext(r.Context(), "record updated", "entity", svc.Entity().Name, "id", id)
		app.writeResult(w, r, http.StatusOK, result)
	}
}

// deleteHandler handles DELETE /v1/{entity}/:id. Deleting an unknown id
// succeeds.
func (app *application) deleteHandler(svc *data.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.notFoundResponse(w, r)
			return
		}

		if err := svc.Remove(r.Context(), id); err != nil {
			app.serviceErrorResponse(w, r, err)
			return
		}

		app.logger.InfoWithContext(r.Context(), "record removed", "entity", svc.Entity().Name, "id", id)
		if err := app.writeJSON(w, http.StatusOK, envelope{"data": nil}, nil); err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}
}

func (app *application) writeResult(w http.ResponseWriter, r *http.Request, status int, result any) {
	if err := app.writeJSON(w, status, envelope{"data": result}, nil); err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
