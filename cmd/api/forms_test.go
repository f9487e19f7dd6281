package main

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"adminconsole/internal/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldError(msg string) map[string]any {
	return map[string]any{"type": data.FieldErrorTypeValidate, "message": msg}
}

func TestCreateFormHandler(t *testing.T) {
	app := newTestApplication(t)
	handler := app.routes()

	t.Run("errors are keyed to the inputs", func(t *testing.T) {
		resp := doRequest(t, handler, http.MethodPost, "/v1/sets/form",
			`{"name":"  ","mandatoryNumber":"","uniqueNumber":"abc","optionalNumber":"x"}`)

		require.Equal(t, http.StatusUnprocessableEntity, resp.status, resp.raw)
		result := resp.dataObject(t)
		assert.Equal(t, false, result["ok"])
		assert.Equal(t, map[string]any{
			"name":            fieldError("Name is required"),
			"mandatoryNumber": fieldError(data.MsgRequiredNumber),
			"uniqueNumber":    fieldError(data.MsgNotANumber),
			"optionalNumber":  fieldError(data.MsgOptionalNumber),
		}, result["errors"])
	})

	t.Run("omitted inputs count as blank", func(t *testing.T) {
		resp := doRequest(t, handler, http.MethodPost, "/v1/sets/form", `{"name":"Set A"}`)

		require.Equal(t, http.StatusUnprocessableEntity, resp.status, resp.raw)
		assert.Equal(t, map[string]any{
			"mandatoryNumber": fieldError(data.MsgRequiredNumber),
			"uniqueNumber":    fieldError(data.MsgRequiredNumber),
		}, resp.dataObject(t)["errors"])
	})

	t.Run("strings are normalized before storage", func(t *testing.T) {
		resp := doRequest(t, handler, http.MethodPost, "/v1/sets/form",
			`{"name":"123","mandatoryNumber":" 4 ","uniqueNumber":"5","optionalNumber":"","optionalPositiveNumber":""}`)

		require.Equal(t, http.StatusCreated, resp.status, resp.raw)
		result := resp.dataObject(t)
		assert.Equal(t, true, result["ok"])
		id := result["id"].(string)

		doc := doRequest(t, handler, http.MethodGet, "/v1/sets/"+id, "").dataObject(t)
		assert.Equal(t, "123", doc["name"])
		assert.Equal(t, 4.0, doc["mandatoryNumber"])
		assert.Equal(t, 5.0, doc["uniqueNumber"])
		assert.NotContains(t, doc, "optionalNumber")
		assert.NotContains(t, doc, "optionalPositiveNumber")
	})

	t.Run("non-string values are rejected", func(t *testing.T) {
		resp := doRequest(t, handler, http.MethodPost, "/v1/sets/form", `{"name":"Set A","mandatoryNumber":1}`)
		assert.Equal(t, http.StatusBadRequest, resp.status)
		msg, _ := resp.body["error"].(string)
		assert.True(t, strings.HasPrefix(msg, "body contains incorrect JSON type"), "got %q", msg)
	})

	t.Run("numeric looking names are stored as typed", func(t *testing.T) {
		for i, name := range []string{"007", "1e3", "1.50", "0x1p4", "+5"} {
			body := `{"name":" ` + name + ` ","mandatoryNumber":"1","uniqueNumber":"` + strconv.Itoa(100+i) + `"}`
			resp := doRequest(t, handler, http.MethodPost, "/v1/sets/form", body)
			require.Equal(t, http.StatusCreated, resp.status, resp.raw)

			id := resp.dataObject(t)["id"].(string)
			doc := doRequest(t, handler, http.MethodGet, "/v1/sets/"+id, "").dataObject(t)
			assert.Equal(t, name, doc["name"])

			form := doRequest(t, handler, http.MethodGet, "/v1/sets/"+id+"/form", "").dataObject(t)
			assert.Equal(t, name, form["name"])
		}
	})
}

func TestShowFormHandler(t *testing.T) {
	app := newTestApplication(t)
	handler := app.routes()

	id := createSet(t, handler, "Set A", 10)

	resp := doRequest(t, handler, http.MethodGet, "/v1/sets/"+id+"/form", "")
	require.Equal(t, http.StatusOK, resp.status, resp.raw)
	assert.Equal(t, map[string]any{
		"name":                   "Set A",
		"mandatoryNumber":        "1",
		"uniqueNumber":           "10",
		"optionalNumber":         "",
		"optionalPositiveNumber": "",
	}, resp.body["data"])

	resp = doRequest(t, handler, http.MethodGet, "/v1/sets/missing/form", "")
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestUpdateFormHandler(t *testing.T) {
	app := newTestApplication(t)
	handler := app.routes()

	id := createSet(t, handler, "Set A", 10)
	createSet(t, handler, "Set B", 20)

	t.Run("round trip", func(t *testing.T) {
		form := doRequest(t, handler, http.MethodGet, "/v1/sets/"+id+"/form", "").dataObject(t)
		require.Equal(t, "", form["optionalNumber"])

		resp := doRequest(t, handler, http.MethodPut, "/v1/sets/"+id+"/form",
			`{"name":"Set A","mandatoryNumber":"1","uniqueNumber":"10","optionalNumber":"2.5","optionalPositiveNumber":""}`)
		require.Equal(t, http.StatusOK, resp.status, resp.raw)
		assert.Equal(t, map[string]any{"ok": true, "id": id}, resp.body["data"])

		form = doRequest(t, handler, http.MethodGet, "/v1/sets/"+id+"/form", "").dataObject(t)
		assert.Equal(t, "2.5", form["optionalNumber"])
	})

	t.Run("unique conflict", func(t *testing.T) {
		resp := doRequest(t, handler, http.MethodPut, "/v1/sets/"+id+"/form",
			`{"name":"Set A","mandatoryNumber":"1","uniqueNumber":"20"}`)
		require.Equal(t, http.StatusUnprocessableEntity, resp.status, resp.raw)
		assert.Equal(t, map[string]any{
			"uniqueNumber": fieldError(data.MsgAlreadyInUse),
		}, resp.dataObject(t)["errors"])
	})

	t.Run("missing record", func(t *testing.T) {
		resp := doRequest(t, handler, http.MethodPut, "/v1/sets/missing/form",
			`{"name":"Ghost","mandatoryNumber":"1","uniqueNumber":"99"}`)
		assert.Equal(t, http.StatusNotFound, resp.status)
	})
}
