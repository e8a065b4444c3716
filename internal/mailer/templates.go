package mailer

import (
	"bytes"
	"html/template"
)

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; background: #f6f6f6; margin: 0; padding: 0;">
  <div style="max-width: 600px; margin: 40px auto; background: #fff; border-radius: 8px; padding: 32px; color: #1f2933;">
    <h2 style="margin-top: 0;">{{.Title}}</h2>
    {{.Body}}
  </div>
</body>
</html>`))

var (
	approvedBody = template.Must(template.New("approved").Parse(`
<p>Your exam <strong>{{.ExamName}}</strong> has been approved and published.</p>
<p>Content handle: <code>{{.Handle}}</code></p>
<p>The decryption key is available from the institute dashboard and is never sent by email.</p>
{{if .Comment}}<p>Reviewer comment: {{.Comment}}</p>{{end}}`))

	rejectedBody = template.Must(template.New("rejected").Parse(`
<p>Your exam <strong>{{.ExamName}}</strong> was not approved.</p>
{{if .Comment}}<p>Reviewer comment: {{.Comment}}</p>{{end}}`))

	resultsBody = template.Must(template.New("results").Parse(`
<p>Hello {{.StudentName}},</p>
<p>Results for <strong>{{.ExamName}}</strong> are now available. Sign in to view your score.</p>`))
)

// DecisionNotice is the data for an exam review outcome email.
type DecisionNotice struct {
	ExamName string
	Approved bool
	Handle   string
	Comment  string
}

// ResultsNotice is the data for a results-released email.
type ResultsNotice struct {
	StudentName string
	ExamName    string
}

// RenderDecision builds the institute's review outcome email.
func RenderDecision(to string, n DecisionNotice) (Message, error) {
	body, title := rejectedBody, "Exam request rejected"
	if n.Approved {
		body, title = approvedBody, "Exam request approved"
	}
	html, err := render(title, body, n)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: title + ": " + n.ExamName, HTML: html}, nil
}

// RenderResults builds a student's results-released email.
func RenderResults(to string, n ResultsNotice) (Message, error) {
	title := "Exam results released"
	html, err := render(title, resultsBody, n)
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: title + ": " + n.ExamName, HTML: html}, nil
}

func render(title string, body *template.Template, data any) (string, error) {
	var inner bytes.Buffer
	if err := body.Execute(&inner, data); err != nil {
		return "", err
	}
	var out bytes.Buffer
	err := layout.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(inner.String())})
	return out.String(), err
}
