package main

import (
	"net/http"

	"adminconsole/internal/data"
	"adminconsole/internal/value"
)

// readForm decodes a body of field name to string and fills every declared
// field the client left out with "", so errors for it can be reported.
func (app *application) readForm(w http.ResponseWriter, r *http.Request, e *data.Entity) (value.FormValues, error) {
	var form value.FormValues
	if err := app.readJSON(w, r, &form); err != nil {
		return nil, err
	}
	if form == nil {
		form = value.FormValues{}
	}
	for _, name := range e.Shape() {
		if _, ok := form[name]; !ok {
			form[name] = ""
		}
	}
	return form, nil
}

// submitForm validates the raw strings, normalizes them and hands the record
// to mutate. Field errors come back keyed to the form inputs.
func (app *application) submitForm(w http.ResponseWriter, r *http.Request, svc *data.Service, successStatus int,
	mutate func(value.Record) (data.MutationResult, error)) {

	form, err := app.readForm(w, r, svc.Entity())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if validated := svc.Entity().Validate(form.Record()); !validated.OK {
		app.writeResult(w, r, http.StatusUnprocessableEntity, formResult{
			Errors: data.ErrorsFromAPIToForm(form, validated),
		})
		return
	}

	result, err := mutate(svc.Entity().FromForm(form))
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}
	if !result.OK {
		app.writeResult(w, r, http.StatusUnprocessableEntity, formResult{
			Errors: data.ErrorsFromAPIToForm(form, result),
		})
		return
	}

	app.writeResult(w, r, successStatus, formResult{OK: true, ID: result.ID})
}

// createFormHandler handles POST /v1/{entity}/form.
func (app *application) createFormHandler(svc *data.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.submitForm(w, r, svc, http.StatusCreated, func(rec value.Record) (data.MutationResult, error) {
			return svc.Create(r.Context(), rec)
		})
	}
}

// updateFormHandler handles PUT /v1/{entity}/:id/form.
func (app *application) updateFormHandler(svc *data.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := app.readIDParam(r)
		if err != nil {
			app.notFoundResponse(w, r)
			return
		}

		app.submitForm(w, r, svc, http.StatusOK, func(rec value.Record) (data.MutationResult, error) {
			return svc.Update(r.Context(), id, rec)
		})
	}
}

// showFormHandler handles GET /v1/{entity}/:id/form and returns the stored
// record as display strings, blank fields as "".
func (app *application) showFormHandler(svc *data.Service) http.HandlerFunc {
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

		app.writeResult(w, r, http.StatusOK, value.APIToForm(svc.Entity().Shape(), doc.Record()))
	}
}
