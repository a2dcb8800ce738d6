package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"radpad-intake-service/internal/service/search"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is one keystroke or Enter from a search box.
type clientMessage struct {
	Type  string `json:"type"` // input, submit
	Value string `json:"value"`
}

type serverMessage struct {
	Type    string            `json:"type"` // results, error
	List    string            `json:"list"`
	Query   string            `json:"query"`
	Trigger string            `json:"trigger,omitempty"`
	Items   []json.RawMessage `json:"items,omitempty"`
	Message string            `json:"message,omitempty"`
}

// searchSocket binds one debounced search field to a websocket connection.
// The field lives as long as the connection.
func (h *handlers) searchSocket(w http.ResponseWriter, r *http.Request) {
	list := chi.URLParam(r, "list")
	logger := log.With().Str("component", "search-ws").Str("list", list).Logger()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(msg serverMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug().Err(err).Msg("WebSocket write error")
		}
	}

	field := search.NewField(r.Context(), list, h.searchPolicy, h.searcher, func(res search.Result) {
		msg := serverMessage{
			Type:    "results",
			List:    res.List,
			Query:   res.Query,
			Trigger: string(res.Trigger),
			Items:   res.Items,
		}
		if res.Err != nil {
			msg.Type = "error"
			msg.Items = nil
			msg.Message = res.Err.Error()
		}
		write(msg)
	})
	defer func() {
		field.Close()
		field.Wait()
	}()

	logger.Debug().Msg("Search socket opened")
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("Search socket closed")
			}
			return
		}
		switch msg.Type {
		case "input":
			field.Input(msg.Value)
		case "submit":
			field.Submit(msg.Value)
		default:
			write(serverMessage{Type: "error", List: list, Message: "unknown message type " + msg.Type})
		}
	}
}
