package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/kbinani/screenshot"
	"github.com/skip2/go-qrcode"

	"coview/internal/constants"
	"coview/internal/protocol"
)

const (
	colorReset  = constants.ColorReset
	colorBold   = constants.ColorBold
	colorDim    = constants.ColorDim
	colorCyan   = constants.ColorCyan
	colorGreen  = constants.ColorGreen
	colorYellow = constants.ColorYellow
	colorRed    = constants.ColorRed
)

func printBanner() {
	fmt.Println()
	fmt.Printf("  %s%scoview%s %sv%s%s\n", colorBold, colorCyan, colorReset, colorBold, constants.Version, colorReset)
	fmt.Printf("  %sTerminal Presenter%s\n", colorDim, colorReset)
	fmt.Println()
}

func printField(label, value, valueColor string) {
	fmt.Printf("  %s%-12s%s %s%s%s\n", colorDim, label, colorReset, valueColor, value, colorReset)
}

func printEvent(tag, text, tagColor string) {
	fmt.Printf("  %s%s%s %s[%s]%s %s\n",
		colorDim, time.Now().Format(constants.TimeFormatShort), colorReset,
		tagColor, tag, colorReset, text)
}

// joinURL derives the browser-facing join link from the websocket endpoint.
func joinURL(wsURL, code string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return ""
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/?code=%s", scheme, u.Host, code)
}

// captureFrame grabs the primary display and wraps it as a page snapshot.
func captureFrame() (string, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return "", fmt.Errorf("no active displays")
	}
	img, err := screenshot.CaptureDisplay(0)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return fmt.Sprintf(`<img src="data:image/png;base64,%s" style="width:100%%">`, encoded), nil
}

func main() {
	godotenv.Load()

	serverURL := flag.String("server", "ws://localhost:8080/ws", "websocket endpoint of the coview server")
	interval := flag.Duration("interval", 5*time.Second, "screen capture interval")
	noCapture := flag.Bool("no-capture", false, "disable screen capture, relay voice input only")
	flag.Parse()

	printBanner()

	dialer := websocket.Dialer{HandshakeTimeout: constants.WSHandshakeTimeout}
	conn, _, err := dialer.Dial(*serverURL, nil)
	if err != nil {
		fmt.Printf("  %sError: cannot reach server at %s: %v%s\n", colorRed, *serverURL, err, colorReset)
		os.Exit(1)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeCreateSession}); err != nil {
		fmt.Printf("  %sError: create-session failed: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	type event struct {
		Type    protocol.Type `json:"type"`
		Code    string        `json:"code"`
		Text    string        `json:"text"`
		Reason  string        `json:"reason"`
		Message string        `json:"message"`
	}

	events := make(chan event)
	go func() {
		defer close(events)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev event
			if json.Unmarshal(raw, &ev) == nil {
				events <- ev
			}
		}
	}()

	var code string
	select {
	case ev, ok := <-events:
		if !ok || ev.Type != protocol.TypeSessionCreated {
			fmt.Printf("  %sError: server did not confirm the session%s\n", colorRed, colorReset)
			os.Exit(1)
		}
		code = ev.Code
	case <-time.After(constants.WSHandshakeTimeout):
		fmt.Printf("  %sError: timed out waiting for session code%s\n", colorRed, colorReset)
		os.Exit(1)
	}

	link := joinURL(*serverURL, code)
	printField("Code", code, colorBold+colorGreen)
	printField("Join URL", link, colorCyan)
	fmt.Println()

	if qr, err := qrcode.New(link, qrcode.Medium); err == nil {
		fmt.Print(qr.ToSmallString(false))
	}
	fmt.Printf("  %s%s%s\n\n", colorDim, strings.Repeat("─", 50), colorReset)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if *noCapture {
				continue
			}
			html, err := captureFrame()
			if err != nil {
				printEvent("CAPTURE", err.Error(), colorYellow)
				continue
			}
			conn.WriteJSON(protocol.Message{Type: protocol.TypeFullPage, HTML: html})

		case ev, ok := <-events:
			if !ok {
				printEvent("CLOSED", "connection lost", colorRed)
				return
			}
			switch ev.Type {
			case protocol.TypeAgentJoined:
				printEvent("AGENT", "agent joined the session", colorGreen)
			case protocol.TypeAgentDisconnected:
				printEvent("AGENT", "agent disconnected", colorYellow)
			case protocol.TypeAIResponse:
				printEvent("AI", ev.Text, colorCyan)
			case protocol.TypeSessionEnded:
				printEvent("ENDED", "session ended: "+ev.Reason, colorRed)
				return
			case protocol.TypeError:
				printEvent("ERROR", ev.Message, colorRed)
			}

		case <-sigChan:
			fmt.Println()
			printEvent("BYE", "ending session", colorDim)
			conn.WriteJSON(protocol.Message{Type: protocol.TypeEndSession})
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			time.Sleep(200 * time.Millisecond)
			return
		}
	}
}
