package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat/internal/auth"
	"github.com/Tyrowin/gochat/internal/gateway"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// IdentityGate authenticates a WebSocket handshake.
type IdentityGate interface {
	AuthenticateRequest(r *http.Request) (gateway.Identity, error)
}

// Handlers bundles the HTTP handlers that need the hub or the identity gate.
type Handlers struct {
	hub    *Hub
	gate   IdentityGate
	logger *slog.Logger
}

// NewHandlers creates the HTTP handlers for hub, authenticating sockets with gate.
func NewHandlers(hub *Hub, gate IdentityGate, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{hub: hub, gate: gate, logger: logger}
}

// WebSocketHandler authenticates the handshake, upgrades the connection and
// hands the new client to the hub. Unauthenticated requests are refused with
// 401 before the upgrade.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	identity, err := h.gate.AuthenticateRequest(r)
	if err != nil {
		status := http.StatusUnauthorized
		message := "Authentication required"
		if errors.Is(err, auth.ErrExpiredToken) {
			message = "Token expired"
		}
		h.logger.Info("rejected websocket handshake", "addr", r.RemoteAddr, "error", err)
		http.Error(w, message, status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.hub, identity, r.RemoteAddr)
	if err := h.hub.Register(client); err != nil {
		h.logger.Warn("hub refused client", "connectionId", client.ID(), "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthHandler reports that the server is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "gochat"})
}

// StatsResponse is the body of the stats endpoint.
type StatsResponse struct {
	Clients     int `json:"clients"`
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Rooms       int `json:"rooms"`
}

// StatsHandler reports live connection, user and room counts.
func (h *Handlers) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	connections, users, rooms := h.hub.Gateway().Registry().Stats()
	writeJSON(w, http.StatusOK, StatsResponse{
		Clients:     h.hub.ClientCount(),
		Connections: connections,
		Users:       users,
		Rooms:       rooms,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write JSON response", "error", err)
	}
}

// TestPageHandler serves an HTML page for exercising the WebSocket protocol
// by hand. Paste a token, connect, and send events.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		slog.Warn("failed to write HTML response", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>GoChat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #online { margin: 10px 0; color: #555; }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>GoChat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="tokenInput" placeholder="JWT token">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div id="online">Online: none</div>
    <div>
        <input type="text" id="roomInput" placeholder="Room (default general)">
        <input type="text" id="recipientInput" placeholder="Private recipient id">
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
        <button id="joinButton" onclick="joinRoom()" disabled>Join room</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        let typing = false;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const joinButton = document.getElementById('joinButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');
        const onlineDiv = document.getElementById('online');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function emit(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ event: event, data: data }));
            }
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            joinButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function handle(frame) {
            const data = frame.data;
            switch (frame.event) {
            case 'users:online':
                onlineDiv.textContent = 'Online: ' + (data || []).map(u => u.username).join(', ');
                break;
            case 'user:joined':
                addLine(data.username + ' came online');
                break;
            case 'user:left':
                addLine(data.username + ' went offline');
                break;
            case 'message:received':
                addLine((data.isPrivate ? '[private] ' : '[' + data.room + '] ') + data.sender.username + ': ' + data.content, 'green');
                break;
            case 'user:typing':
                addLine(data.username + ' is typing...');
                break;
            case 'user:stopped-typing':
                break;
            case 'error':
                addLine('Error: ' + data.message, 'red');
                break;
            default:
                addLine(JSON.stringify(frame));
            }
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const token = encodeURIComponent(document.getElementById('tokenInput').value.trim());
            ws = new WebSocket(scheme + location.host + '/ws?token=' + token);

            ws.onopen = function() {
                addLine('Connected to GoChat server');
                updateStatus(true);
            };
            ws.onmessage = function(event) {
                handle(JSON.parse(event.data));
            };
            ws.onclose = function() {
                addLine('Connection closed');
                updateStatus(false);
                ws = null;
            };
            ws.onerror = function() {
                addLine('Connection error', 'red');
                updateStatus(false);
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function target() {
            return {
                room: document.getElementById('roomInput').value.trim(),
                recipientId: document.getElementById('recipientInput').value.trim()
            };
        }

        function sendMessage() {
            const content = messageInput.value.trim();
            if (!content) {
                return;
            }
            const t = target();
            emit('message:send', {
                content: content,
                room: t.room,
                recipientId: t.recipientId,
                isPrivate: t.recipientId !== ''
            });
            if (typing) {
                emit('typing:stop', t);
                typing = false;
            }
            messageInput.value = '';
        }

        function joinRoom() {
            const t = target();
            if (t.recipientId) {
                emit('private:join', t.recipientId);
            } else if (t.room) {
                emit('room:join', t.room);
            }
        }

        messageInput.addEventListener('input', function() {
            if (!typing && messageInput.value !== '') {
                emit('typing:start', target());
                typing = true;
            }
        });
        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
