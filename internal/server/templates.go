package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/login.html
var loginPageTemplateHTML string

var loginPageTemplate = template.Must(template.New("login").Parse(loginPageTemplateHTML))

// LoginPageData is what the authentication page renders
type LoginPageData struct {
	GatewayName string
	CSRFToken   string
	Email       string
	MFAPending  bool
	MFAMessage  string
	Message     string
	MessageType string // "success" or "error"
	FieldErrors map[string]string
	// Set after a successful credential login: the page redirects to
	// ResumeRoute after ResumeDelaySeconds
	ResumeRoute        string
	ResumeDelaySeconds string
	// TargetRoute is the navigation that will resume after sign-in
	TargetRoute string
}
