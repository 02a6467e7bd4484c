package endpoint

import "net/http"

// StringRenderer writes Body with Status (default 200). ContentType
// defaults to "text/plain; charset=utf-8".
type StringRenderer struct {
	Status      int
	Body        string
	ContentType string
}

// setContentType sets the Content-Type header unless a processor already
// set one.
func setContentType(w http.ResponseWriter, contentType string) {
	if w.Header().Get("Content-Type") != "" {
		return
	}
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
}

func (sr *StringRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	setContentType(w, sr.ContentType)
	w.WriteHeader(statusOr(sr.Status, http.StatusOK))
	if sr.Body == "" {
		return nil
	}
	_, err := w.Write([]byte(sr.Body))
	return err
}

// NoContentRenderer writes headers only. Status defaults to 204.
type NoContentRenderer struct {
	Status int
}

func (nr *NoContentRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(statusOr(nr.Status, http.StatusNoContent))
	return nil
}

func statusOr(status, def int) int {
	if status == 0 {
		return def
	}
	return status
}
