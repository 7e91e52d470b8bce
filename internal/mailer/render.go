package mailer

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// RenderedMessage is the pure output of rendering a NotificationTask.
type RenderedMessage struct {
	Subject  string
	HTMLBody string
}

var bodyTmpl = template.Must(template.New("body").Parse(`
    <html>
      <body>
        <p style="font-size:18px">{{.}}</p>
      </body>
    </html>
`))

// Render maps a NotificationTask to its subject and HTML body. Rendering is
// pure: it touches no external state, and an unknown kind is the only error.
func Render(task domain.NotificationTask) (RenderedMessage, error) {
	var subject, message string

	switch task.Kind {
	case domain.TaskConfirmation:
		subject = "New Image Upload"
		message = fmt.Sprintf("Image received. Its URL is s3://%s/%s",
			task.Context["source_container"], task.Context["resource_key"])
	case domain.TaskRejection:
		subject = "Upload failed"
		message = fmt.Sprintf("Invalid file, you should have a '.jpeg' or '.png' extension. Its URL is s3://%s/%s",
			task.Context["source_container"], task.Context["resource_key"])
	case domain.TaskDeletion:
		subject = "Record Deleted"
		message = fmt.Sprintf("%q has been deleted.", task.Context["resource_key"])
	default:
		return RenderedMessage{}, fmt.Errorf("unknown notification kind %q", task.Kind)
	}

	var sb strings.Builder
	if err := bodyTmpl.Execute(&sb, message); err != nil {
		return RenderedMessage{}, fmt.Errorf("render body: %w", err)
	}
	return RenderedMessage{Subject: subject, HTMLBody: sb.String()}, nil
}
