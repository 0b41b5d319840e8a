package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// InquiryContent is the data rendered into an inquiry notification.
type InquiryContent struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// inquiryTmpl wraps an inquiry in the storefront's email layout.
// Fields are auto-escaped by html/template.
var inquiryTmpl = template.Must(template.New("inquiry").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1.0">
  <title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f4f5;
     font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" role="presentation"
         style="background-color:#f4f4f5;padding:40px 16px;">
    <tr>
      <td align="center">
        <table width="600" cellpadding="0" cellspacing="0" role="presentation"
               style="max-width:600px;width:100%;">

          <!-- Header -->
          <tr>
            <td style="background-color:#111827;padding:24px 40px;border-radius:12px 12px 0 0;">
              <span style="font-size:18px;font-weight:700;color:#ffffff;">{{.Subject}}</span>
            </td>
          </tr>

          <!-- Sender -->
          <tr>
            <td style="background-color:#f9fafb;padding:16px 40px;border-left:3px solid #2563eb;">
              <p style="margin:0;font-size:14px;color:#374151;"><strong>Nombre:</strong> {{.Name}}</p>
              <p style="margin:4px 0 0;font-size:14px;color:#374151;"><strong>Email:</strong>
                <a href="mailto:{{.Email}}" style="color:#2563eb;text-decoration:none;">{{.Email}}</a></p>
            </td>
          </tr>

          <!-- Message -->
          <tr>
            <td style="background-color:#ffffff;padding:32px 40px;border-radius:0 0 12px 12px;">
              <div style="font-size:14px;line-height:1.7;color:#374151;
                          white-space:pre-wrap;word-break:break-word;">{{.Message}}</div>
            </td>
          </tr>

        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`))

// InquirySubject returns the subject line for an inquiry.
func InquirySubject(c InquiryContent) string {
	if s := strings.TrimSpace(c.Subject); s != "" {
		return s
	}
	if n := strings.TrimSpace(c.Name); n != "" {
		return DefaultSubject + " de " + n
	}
	return DefaultSubject
}

// BuildInquiryHTML renders the HTML body for an inquiry.
func BuildInquiryHTML(c InquiryContent) (string, error) {
	c.Subject = InquirySubject(c)
	var buf bytes.Buffer
	if err := inquiryTmpl.Execute(&buf, c); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildInquiryText renders the plain-text body for an inquiry.
func BuildInquiryText(c InquiryContent) string {
	return fmt.Sprintf("Nombre: %s\nEmail: %s\n\n%s\n", c.Name, c.Email, c.Message)
}
