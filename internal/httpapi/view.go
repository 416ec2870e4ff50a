package httpapi

import (
	"html/template"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/you/napgram-console/internal/core"
	"github.com/you/napgram-console/internal/transcript"
)

// The viewer page is rendered server-side; the scheme tokens carried by
// each message are Tailwind utility classes, so the page pulls Tailwind
// from the CDN rather than shipping a build pipeline.
const viewerTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>聊天记录</title>
<script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-100 min-h-screen">
<div class="max-w-2xl mx-auto p-4">
{{- if eq .State "loading"}}
<p class="text-center text-gray-500 py-12">加载中...</p>
{{- else if eq .State "error"}}
<p class="text-center text-red-500 py-12">错误: {{.Error}}</p>
{{- else}}
{{- range .Messages}}
<div class="flex gap-3 py-2">
  <div class="shrink-0">
  {{- if .AvatarURL}}
    <img class="w-10 h-10 rounded-full" src="{{.AvatarURL}}" alt="">
  {{- else}}
    <div class="w-10 h-10 rounded-full bg-gradient-to-br {{.Gradient}} flex items-center justify-center text-white font-bold">{{.Initial}}</div>
  {{- end}}
  </div>
  <div class="min-w-0">
    <div class="flex items-baseline gap-2">
      <span class="px-2 py-0.5 rounded text-xs {{.Badge}} {{.BadgeText}}">{{.DisplayName}}</span>
      {{- if .Time}}<span class="text-xs text-gray-400">{{.Time}}</span>{{end}}
    </div>
    <div class="text-sm text-gray-800 break-words">
    {{- range .Units}}
      {{- if eq .Kind "lines"}}
        {{- range .Lines}}<p>{{.}}</p>{{end}}
      {{- else if eq .Kind "image"}}
        {{- if .URL}}<img class="max-w-xs rounded my-1" src="{{.URL}}" alt="" loading="lazy">{{else}}<span class="text-gray-400">{{.Label}}</span>{{end}}
      {{- else if eq .Kind "link"}}
        {{- if .URL}}<a class="text-blue-500 underline" href="{{.URL}}">{{.Label}}</a>{{else}}<span class="text-gray-400">{{.Label}}</span>{{end}}
      {{- else}}<span class="text-gray-500">{{.Label}}</span>
      {{- end}}
    {{- end}}
    </div>
  </div>
</div>
{{- end}}
{{- end}}
</div>
</body>
</html>
`

var viewerPage = template.Must(template.New("viewer").Parse(viewerTemplate))

type pageMessage struct {
	DisplayName string
	AvatarURL   string
	Initial     string
	Time        string
	Gradient    string
	Badge       string
	BadgeText   string
	Units       []core.Unit
}

type pageData struct {
	Identifier string
	State      string
	Error      string
	Messages   []pageMessage
}

func buildPage(identifier string, snap transcript.Snapshot) pageData {
	data := pageData{Identifier: identifier, State: snap.State.String()}
	if snap.Identifier != identifier {
		// the view slot moved on to a newer identifier while we waited
		data.State = "loading"
		return data
	}
	switch snap.State {
	case transcript.StateError:
		data.Error = snap.Err
	case transcript.StateReady:
		data.Messages = make([]pageMessage, 0, len(snap.Transcript))
		for _, r := range snap.Transcript {
			data.Messages = append(data.Messages, pageMessage{
				DisplayName: r.Message.DisplayName,
				AvatarURL:   r.Message.AvatarURL,
				Initial:     firstRune(r.Message.DisplayName),
				Time:        displayTime(r.Message),
				Gradient:    r.Scheme.Gradient,
				Badge:       r.Scheme.Badge,
				BadgeText:   r.Scheme.BadgeText,
				Units:       r.Units,
			})
		}
	}
	return data
}

// displayTime formats a message timestamp for the page; records without a
// timestamp, including an explicit zero, show none.
func displayTime(msg core.Message) string {
	if !msg.HasTime || msg.Time == 0 {
		return ""
	}
	return time.Unix(int64(msg.Time), 0).Local().Format("2006/01/02 15:04:05")
}

func firstRune(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

func renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewerPage.Execute(w, data); err != nil {
		// headers are gone at this point; nothing to do but log upstream
		return
	}
}
