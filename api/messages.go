package api

import (
	"net/http"

	"github.com/freewilll/potluck/ledger"
	"github.com/freewilll/potluck/notify"
)

type sendMessageRequest struct {
	ToUser   *int    `json:"to_user"`
	Message  *string `json:"message"`
	FromUser *int    `json:"from_user"`
}

// getMessages returns the messages sent to a user. A user without
// messages gets a 404.
func (api *API) getMessages(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := pathID(w, r, "recipient_id")
	if !ok {
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	messages, err := dbh.GetMessages(r.Context(), recipientID)
	if err != nil {
		api.fail(w, r, "message", err)
		return
	}
	if len(messages) == 0 {
		writeError(w, http.StatusNotFound, "no messages found")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// sendMessage stores a direct message from one user to another
func (api *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var m sendMessageRequest
	if !decode(w, r, &m) {
		return
	}

	if m.ToUser == nil || m.Message == nil || m.FromUser == nil {
		missingFields(w)
		return
	}

	dbh, ok := api.connect(w, r)
	if !ok {
		return
	}
	defer dbh.Close()

	message := ledger.Message{ToUserID: *m.ToUser, FromUserID: *m.FromUser, Message: *m.Message}
	id, err := dbh.CreateMessage(r.Context(), message)
	if err != nil {
		api.fail(w, r, "message", err)
		return
	}
	message.ID = id

	logger(r).Info("Sent message", "id", id, "from", message.FromUserID, "to", message.ToUserID)
	api.publish(r, func() (notify.Event, error) { return notify.MessageSent(message) })

	writeJSON(w, http.StatusCreated, msgResponse{Msg: "Message was successfully sent", ID: id})
}
