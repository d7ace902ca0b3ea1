package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"octobre.org/internal/email"
)

type createAccountRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Mailbox  string `json:"mailbox"`
}

// accountResponse never echoes the stored password.
type accountResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Username  string    `json:"username"`
	Mailbox   string    `json:"mailbox"`
	CreatedAt time.Time `json:"created_at"`
}

type classificationPayload struct {
	Label          string `json:"label"`
	EmergencyLevel int    `json:"emergency_level"`
	Abstract       string `json:"abstract"`
}

type createEmailRequest struct {
	AccountID  int64     `json:"account_id"`
	MessageID  string    `json:"message_id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`

	Classification classificationPayload `json:"classification"`
}

type emailResponse struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	MessageID  string    `json:"message_id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`

	Classification classificationPayload `json:"classification"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAccountResponse(a email.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Host:      a.Host,
		Port:      a.Port,
		Username:  a.Username,
		Mailbox:   a.Mailbox,
		CreatedAt: a.CreatedAt,
	}
}

func toEmailResponse(e email.Email) emailResponse {
	return emailResponse{
		ID:         e.ID,
		AccountID:  e.AccountID,
		MessageID:  e.MessageID,
		Sender:     e.Sender,
		Subject:    e.Subject,
		ReceivedAt: e.ReceivedAt,
		Classification: classificationPayload{
			Label:          e.Classification.Label,
			EmergencyLevel: e.Classification.EmergencyLevel,
			Abstract:       e.Classification.Abstract,
		},
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func (a *API) createEmailAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.emails.CreateAccount(r.Context(), email.Account{
		Name:     req.Name,
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		Mailbox:  req.Mailbox,
	})
	if err != nil {
		handleEmailError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(created))
}

func (a *API) listEmailAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.emails.ListAccounts(r.Context())
	if err != nil {
		handleEmailError(w, r, err)
		return
	}
	items := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		items = append(items, toAccountResponse(acc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) deleteEmailAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "account_id")
	if !ok {
		return
	}
	if err := a.emails.DeleteAccount(r.Context(), id); err != nil {
		handleEmailError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (a *API) createEmail(w http.ResponseWriter, r *http.Request) {
	var req createEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.emails.CreateEmail(r.Context(), email.Email{
		AccountID:  req.AccountID,
		MessageID:  req.MessageID,
		Sender:     req.Sender,
		Subject:    req.Subject,
		ReceivedAt: req.ReceivedAt,
		Classification: email.Classification{
			Label:          req.Classification.Label,
			EmergencyLevel: req.Classification.EmergencyLevel,
			Abstract:       req.Classification.Abstract,
		},
	})
	if err != nil {
		handleEmailError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmailResponse(created))
}

func (a *API) listEmails(w http.ResponseWriter, r *http.Request) {
	var accountID int64
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, r, http.StatusBadRequest, "invalid account_id")
			return
		}
		accountID = parsed
	}
	emails, err := a.emails.List(r.Context(), accountID)
	if err != nil {
		handleEmailError(w, r, err)
		return
	}
	items := make([]emailResponse, 0, len(emails))
	for _, e := range emails {
		items = append(items, toEmailResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "email_id")
	if !ok {
		return
	}
	e, err := a.emails.Get(r.Context(), id)
	if err != nil {
		handleEmailError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmailResponse(e))
}

func (a *API) reclassifyEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "email_id")
	if !ok {
		return
	}
	var req classificationPayload
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.emails.Reclassify(r.Context(), id, email.Classification{
		Label:          req.Label,
		EmergencyLevel: req.EmergencyLevel,
		Abstract:       req.Abstract,
	})
	if err != nil {
		handleEmailError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmailResponse(updated))
}

func (a *API) emailHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "email_id")
	if !ok {
		return
	}
	history, err := a.emails.History(r.Context(), id)
	if err != nil {
		handleEmailError(w, r, err)
		return
	}
	type historyResponse struct {
		ID         int64                 `json:"id"`
		Superseded classificationPayload `json:"superseded"`
		RecordedAt time.Time             `json:"recorded_at"`
	}
	items := make([]historyResponse, 0, len(history))
	for _, h := range history {
		items = append(items, historyResponse{
			ID: h.ID,
			Superseded: classificationPayload{
				Label:          h.Superseded.Label,
				EmergencyLevel: h.Superseded.EmergencyLevel,
				Abstract:       h.Superseded.Abstract,
			},
			RecordedAt: h.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) deleteEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "email_id")
	if !ok {
		return
	}
	if err := a.emails.Delete(r.Context(), id); err != nil {
		handleEmailError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func handleEmailError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, email.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "email resource not found")
	case errors.Is(err, email.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "email operation failed")
	}
}
