package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/brojonat/solmoney/service/transfer"
	"github.com/brojonat/solmoney/service/wallet"
)

//go:embed templates/*.html
var templatesFS embed.FS

// pageTitle is shown in the app bar and the document title.
const pageTitle = "SOL Money Transfer"

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

// pageData is what index.html renders: the app bar and the transfer form.
type pageData struct {
	Title       string
	Wallet      walletResponse
	Form        transfer.Snapshot
	WalletError string
	MaxAirdrop  string
}

// handleIndexPage serves the app bar and transfer form.
// GET /
func handleIndexPage(renderer *TemplateRenderer, provider *wallet.Provider, form *transfer.Form) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{
			Title:       pageTitle,
			Wallet:      walletStatus(r.Context(), provider, renderer.logger),
			Form:        form.Snapshot(),
			WalletError: r.URL.Query().Get("wallet_error"),
			MaxAirdrop:  transfer.MaxAirdropSOL.String(),
		}
		if err := renderer.Render(w, "index.html", data); err != nil {
			renderer.logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}

// handleTransferForm submits the transfer form and redirects back to the page,
// where the outcome is read from the form snapshot.
// POST /transfer
func handleTransferForm(form *transfer.Form) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		form.TrySubmitTransfer(r.Context(), r.PostFormValue("receiver"), r.PostFormValue("amount"))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// handleAirdropForm submits the airdrop form.
// POST /airdrop
func handleAirdropForm(form *transfer.Form) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		form.TryRequestAirdrop(r.Context(), r.PostFormValue("airdrop_amount"))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// handleConnectWalletForm handles the app bar Connect buttons.
// POST /wallet/connect
func handleConnectWalletForm(provider *wallet.Provider, form *transfer.Form) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		target := "/"
		if !form.Loading() {
			if err := provider.Connect(r.Context(), r.PostFormValue("adapter")); err != nil {
				target = "/?wallet_error=" + url.QueryEscape(err.Error())
			}
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// handleDisconnectWalletForm handles the app bar Disconnect button.
// POST /wallet/disconnect
func handleDisconnectWalletForm(provider *wallet.Provider, form *transfer.Form) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !form.Loading() {
			provider.Disconnect(r.Context())
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

const faviconSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 32 32"><rect width="32" height="32" rx="6" fill="#7c3aed"/><text x="16" y="22" font-size="16" text-anchor="middle" fill="#fff" font-family="sans-serif">&#9678;</text></svg>`

// handleFavicon serves a small inline SVG icon.
func handleFavicon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(faviconSVG))
	}
}
