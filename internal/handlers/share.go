package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"ultrapay-backend/internal/ledger"
	"ultrapay-backend/internal/models"
)

const (
	shareTemplateName    = "share.html"
	notFoundTemplateName = "share_not_found.html"
	maxShareDescription  = 200
)

const shareTemplates = `
{{define "share.html"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<meta name="description" content="{{.Description}}">
<meta property="og:type" content="{{if .IsVideo}}video.other{{else}}website{{end}}">
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.Description}}">
<meta property="og:url" content="{{.PageURL}}">
<meta property="og:site_name" content="UltraPay">
{{if .IsVideo}}<meta property="og:video" content="{{.MediaURL}}">
<meta property="og:video:type" content="video/mp4">
<meta name="twitter:card" content="player">
<meta name="twitter:player:stream" content="{{.MediaURL}}">
{{else}}<meta property="og:image" content="{{.MediaURL}}">
<meta name="twitter:card" content="summary_large_image">
<meta name="twitter:image" content="{{.MediaURL}}">
{{end}}<meta name="twitter:title" content="{{.Title}}">
<meta name="twitter:description" content="{{.Description}}">
</head>
<body>
<main>
<h1>{{.Title}}</h1>
{{if .IsVideo}}<video src="{{.MediaSrc}}" controls autoplay loop muted playsinline></video>
{{else}}<img src="{{.MediaSrc}}" alt="{{.Description}}">
{{end}}<p>{{.Prompt}}</p>
<p>{{.ProviderName}} &middot; ${{.Price}}</p>
</main>
</body>
</html>
{{end}}
{{define "share_not_found.html"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Not found - UltraPay</title>
<meta name="robots" content="noindex">
</head>
<body>
<main>
<h1>Generation not found</h1>
<p>This link is invalid or the generation no longer exists.</p>
</main>
</body>
</html>
{{end}}
`

// ShareTemplate parses the share page templates for gin's HTML renderer.
func ShareTemplate() *template.Template {
	return template.Must(template.New("share").Parse(shareTemplates))
}

type sharePage struct {
	Title        string
	Description  string
	Prompt       string
	PageURL      string
	MediaURL     string
	MediaSrc     template.URL
	IsVideo      bool
	ProviderName string
	Price        string
}

type ShareHandler struct {
	ledger  ledger.Ledger
	baseURL string
	logger  zerolog.Logger
}

func NewShareHandler(l ledger.Ledger, publicBaseURL string, logger zerolog.Logger) *ShareHandler {
	return &ShareHandler{
		ledger:  l,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:  logger,
	}
}

// Share godoc
// @Summary     Share page
// @Description HTML page with Open Graph and Twitter card metadata for a generation.
// @Tags        share
// @Produce     html
// @Param       transactionId path string true "Transaction ID"
// @Success     200 {string} string "HTML"
// @Failure     404 {string} string "HTML"
// @Router      /share/{transactionId} [get]
func (h *ShareHandler) Share(c *gin.Context) {
	transactionID := c.Param("transactionId")

	tx, err := h.ledger.Get(c.Request.Context(), transactionID)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			h.logger.Error().Err(err).Str("transaction_id", transactionID).Msg("failed to load shared transaction")
		}
		c.HTML(http.StatusNotFound, notFoundTemplateName, nil)
		return
	}

	c.HTML(http.StatusOK, shareTemplateName, sharePage{
		Title:        "UltraPay - AI generated " + string(tx.Type),
		Description:  truncateRunes(tx.Prompt, maxShareDescription),
		Prompt:       tx.Prompt,
		PageURL:      h.baseURL + "/share/" + tx.TransactionID,
		MediaURL:     tx.MediaURL,
		MediaSrc:     mediaSrc(tx.MediaURL),
		IsVideo:      tx.Type == models.MediaTypeVideo,
		ProviderName: tx.ProviderName,
		Price:        tx.Price.StringFixed(2),
	})
}

// mediaSrc marks URLs produced by our storage backends as safe for src
// attributes. Anything else is dropped.
func mediaSrc(u string) template.URL {
	switch {
	case strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "http://"),
		strings.HasPrefix(u, "data:image/"), strings.HasPrefix(u, "data:video/"):
		return template.URL(u)
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
