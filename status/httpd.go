package status

import (
	"fmt"
	htmltemplate "html/template"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/wojas/go-healthz"

	"github.com/ledgerlabs/snapstream/config"
)

func StartHTTPServer(c config.Config) {
	if c.HTTP.Address == "" {
		logrus.Info("HTTP status server disabled")
		return
	}
	logrus.WithField("address", c.HTTP.Address).Info("HTTP status server enabled")
	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/healthz", healthz.Handler())
	http.Handle("/", &Page{
		c: c,
	})
	go func() {
		err := http.ListenAndServe(c.HTTP.Address, nil)
		logrus.Fatalf("HTTP server error: %v", err)
	}()
}

type Page struct {
	c config.Config
}

const statusTemplateString = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Snapstream Status</title>
	<style>
		body          { font-family: sans-serif; }
		table, td, th { border: 1px solid #ccc; border-collapse: collapse; }
		td, th        { padding: 5px; text-align: left; }
		a             { text-decoration: none; color: #3c6ac5; }
	</style>
</head>
<body>
	<h1>Snapstream Status</h1>
	<p>
		<a href="/metrics">Prometheus metrics</a> |
		<a href="/healthz">Health</a>
	</p>

	<h2>Snapshot</h2>
	<table>
		<tr><th>Slot</th><td>{{ .Snapshot.Slot }}</td></tr>
		<tr><th>Segments</th><td>{{ .Snapshot.SegmentsLen }}</td></tr>
		<tr><th>Indexed accounts</th><td>{{ .Snapshot.Accounts }}</td></tr>
		<tr><th>Index ready</th><td>{{ .Snapshot.IndexReady }}</td></tr>
	</table>

	<h2>Config</h2>
	<pre>{{ .Config.String }}</pre>

</body>
</html>`

var statusTemplate *htmltemplate.Template

func init() {
	var err error
	statusTemplate, err = htmltemplate.New("status").Parse(statusTemplateString)
	if err != nil {
		log.Fatalf("BUG: Error in status HTML template: %v", err)
	}
}

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := struct {
		Config   config.Config
		Snapshot SnapshotInfo
	}{
		Config:   p.c,
		Snapshot: getSnapshotInfo(),
	}

	err := statusTemplate.Execute(w, data)
	if err != nil {
		w.WriteHeader(500)
		_, _ = w.Write([]byte(fmt.Sprintf("Template execution error: %v", err)))
	}
}
