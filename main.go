package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"librarian/audio"
	"librarian/capture"
	"librarian/chat"
	"librarian/encoder"
	"librarian/log"
	"librarian/session"
	"librarian/shutdown"
	"librarian/speech"
	"librarian/transcribe"
	"librarian/turn"
)

var version = "dev"

// app holds the wired pipeline plus the mutable per-run preferences the
// TUI toggles and the dispatcher reads.
type app struct {
	seq     *turn.Sequencer
	history *chat.History

	mu    sync.Mutex
	sess  *session.Session
	prefs chat.Prefs

	turns atomic.Int64
}

func (a *app) Prefs() chat.Prefs {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prefs
}

func (a *app) ToggleSpeak() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prefs.SpeakReplies = !a.prefs.SpeakReplies
	return a.prefs.SpeakReplies
}

func (a *app) ToggleCovers() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prefs.GenerateImage = !a.prefs.GenerateImage
	return a.prefs.GenerateImage
}

func (a *app) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess == nil {
		return ""
	}
	return a.sess.Token
}

func (a *app) UserName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess == nil || a.sess.Name == "" {
		return "you"
	}
	return a.sess.Name
}

// Logout discards the saved credentials, the conversation, and any turn
// in flight.
func (a *app) Logout() {
	a.mu.Lock()
	a.sess = nil
	a.mu.Unlock()

	if err := session.Clear(); err != nil {
		log.Errorf("clearing session: %v", err)
	}
	a.seq.Reset()
	a.history.Reset()
	log.Info("logged_out")
}

func backendURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("LIBRARIAN_BACKEND"); env != "" {
		return env
	}
	return chat.DefaultBaseURL
}

func main() {
	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "login":
			runLogin()
			return
		case "signup":
			runSignup()
			return
		case "logout":
			runLogout()
			return
		}
	}

	run()
}

func promptCredentials() (string, string, error) {
	fmt.Print("Name: ")
	reader := bufio.NewReader(os.Stdin)
	name, err := reader.ReadString('\n')
	if err != nil {
		return "", "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", fmt.Errorf("name must not be empty")
	}

	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", "", err
	}
	if len(pw) == 0 {
		return "", "", fmt.Errorf("password must not be empty")
	}
	return name, string(pw), nil
}

func runLogin() {
	name, pw, err := promptCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := chat.NewClient(backendURL(""), nil)
	token, err := client.Login(context.Background(), name, pw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
		os.Exit(1)
	}

	sess := &session.Session{Name: name, Token: token}
	if err := sess.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Logged in as %s.\n", name)
}

func runSignup() {
	name, pw, err := promptCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := chat.NewClient(backendURL(""), nil)
	if err := client.Signup(context.Background(), name, pw); err != nil {
		fmt.Fprintf(os.Stderr, "Signup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Account created. Run 'librarian login' to sign in.")
}

func runLogout() {
	if err := session.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Logged out.")
}

var shutdownOnce sync.Once

func gracefulShutdown(a *app) {
	shutdownOnce.Do(func() {
		if n := a.turns.Load(); n > 0 {
			log.SessionEnd(int(n))
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
	})
}

func run() {
	backendFlag := flag.String("backend", "", "Recommendation backend base URL (default: LIBRARIAN_BACKEND or "+chat.DefaultBaseURL+")")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	replayFlag := flag.String("replay", "", "Skip real transcription; voice turns produce this canned transcript")
	muteFlag := flag.Bool("mute", false, "Start with spoken replies disabled")
	coversFlag := flag.Bool("covers", false, "Start with cover image generation enabled")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("librarian %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	sess, err := session.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading session: %v\n", err)
		os.Exit(1)
	}
	if sess == nil {
		fmt.Fprintln(os.Stderr, "Not logged in. Run 'librarian login' first.")
		os.Exit(1)
	}

	backend := backendURL(*backendFlag)
	log.SessionStart(backend)

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
			selectedDevice = nil
		}
	}

	captureDevice, err := ctx.NewCapture(selectedDevice, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	var sink EventSink = tuiSink{}
	recorder := capture.NewRecorder(captureDevice, sink.AudioLevel)

	var stt turn.Transcriber
	if *replayFlag != "" {
		stt = transcribe.NewFake(*replayFlag)
	} else {
		key := os.Getenv("ASSEMBLYAI_API_KEY")
		if key == "" {
			log.Warn("ASSEMBLYAI_API_KEY not set; voice turns will fail")
		}
		stt = transcribe.NewClient(transcribe.Config{APIKey: key})
	}

	speaker := speech.NewSystem()
	history := chat.NewHistory()
	client := chat.NewClient(backend, nil)

	a := &app{
		history: history,
		sess:    sess,
		prefs: chat.Prefs{
			SpeakReplies:  !*muteFlag && speaker.Supported(),
			GenerateImage: *coversFlag,
		},
	}

	dispatcher := chat.NewDispatcher(client, history, speaker, a.Token, a.Prefs)
	a.seq = turn.NewSequencer(recorder, stt, dispatcher, func(state turn.State, t *turn.Turn) {
		if state == turn.StateDispatching {
			a.turns.Add(1)
		}
		sink.TurnChanged(state, t)
	})
	history.OnChange(sink.HistoryChanged)

	go func() {
		<-shutdown.Signals()
		gracefulShutdown(a)
	}()

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(a)
	tuiMu.Unlock()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	gracefulShutdown(a)
}
