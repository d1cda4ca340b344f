// ABOUTME: Template rendering for the notify confirmation page and call-log viewer
// ABOUTME: Small inline html/template pages aimed at PBX operators

package gateway

import (
	"html/template"
	"net/http"
	"time"

	"github.com/calldesk/screenpop/internal/store"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head><title>screenpop</title></head>
<body>
  <h1>{{if .Delivered}}Notification sent{{else}}Agent not connected{{end}}</h1>
  <table>
    <tr><td>Result</td><td>{{.Result}}</td></tr>
    <tr><td>Agent</td><td>{{.Agent}}</td></tr>
    <tr><td>Customer</td><td>{{.CustomerID}}</td></tr>
    <tr><td>Phone</td><td>{{.Phone}}</td></tr>
    <tr><td>Time</td><td>{{.Timestamp}}</td></tr>
  </table>
</body>
</html>
`))

var callsTmpl = template.Must(template.New("calls").Parse(`<!DOCTYPE html>
<html>
<head><title>screenpop call log</title></head>
<body>
  <h1>Call log</h1>
  <p>{{len .Calls}} dispatch attempt(s), newest first. <a href="/calls.csv">Download CSV</a></p>
  <table border="1" cellpadding="4">
    <tr>
      <th>Timestamp</th><th>Customer</th><th>Phone</th><th>Agent</th>
      <th>Connected</th><th>Result</th>
    </tr>
    {{range .Calls}}
    <tr>
      <td>{{.Timestamp}}</td>
      <td>{{.CustomerID}}</td>
      <td>{{.Phone}}</td>
      <td>{{.Agent}}</td>
      <td>{{if .Connected}}YES{{else}}NO{{end}}</td>
      <td>{{.Result}}</td>
    </tr>
    {{end}}
  </table>
</body>
</html>
`))

// confirmationData is the template data for the notify confirmation page.
type confirmationData struct {
	Delivered  bool
	Result     string
	Agent      string
	CustomerID string
	Phone      string
	Timestamp  string
}

// callRow is one row of the call-log viewer.
type callRow struct {
	Timestamp  string
	CustomerID string
	Phone      string
	Agent      string
	Connected  bool
	Result     string
}

type callsData struct {
	Calls []callRow
}

// renderConfirmation renders the always-200 confirmation page for /notify.
func (g *Gateway) renderConfirmation(w http.ResponseWriter, rec *store.CallRecord) {
	data := confirmationData{
		Delivered:  rec.Result == store.ResultSent,
		Result:     rec.Result,
		Agent:      rec.Agent,
		CustomerID: rec.CustomerID,
		Phone:      rec.Phone,
		Timestamp:  rec.Timestamp.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := confirmationTmpl.Execute(w, data); err != nil {
		g.logger.Error("failed to render confirmation page", "error", err)
	}
}

// renderCalls renders the call-log viewer for /calls.
func (g *Gateway) renderCalls(w http.ResponseWriter, records []store.CallRecord) {
	data := callsData{Calls: make([]callRow, len(records))}
	for i, rec := range records {
		data.Calls[i] = callRow{
			Timestamp:  rec.Timestamp.Format("2006-01-02 15:04:05"),
			CustomerID: rec.CustomerID,
			Phone:      rec.Phone,
			Agent:      rec.Agent,
			Connected:  rec.ExtensionConnected,
			Result:     rec.Result,
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callsTmpl.Execute(w, data); err != nil {
		g.logger.Error("failed to render call log", "error", err)
	}
}
