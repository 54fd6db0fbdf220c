// Command mensageiro is a terminal front end for the messaging client
// core. Every line read from stdin is one UI event driven into the
// engine on the main goroutine.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/lfarias/mensageiro/internal/backend"
	"github.com/lfarias/mensageiro/internal/chat"
	"github.com/lfarias/mensageiro/internal/config"
	"github.com/lfarias/mensageiro/internal/media"
	"github.com/lfarias/mensageiro/internal/models"
	"github.com/lfarias/mensageiro/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	audioSource := flag.String("audio", "", "audio file replayed as the capture device")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := backend.NewClient(cfg.Backend.URL)
	if err != nil {
		log.Fatalf("Invalid backend: %v", err)
	}

	ctx := context.Background()
	sess := session.New(client, client, client)
	defer sess.Close()
	if err := sess.Init(ctx); err != nil {
		log.Printf("Session check failed: %v", err)
	}

	in := bufio.NewScanner(os.Stdin)

	for sess.State() != session.StateAuthenticated {
		if !authenticate(ctx, sess, in) {
			return
		}
	}
	fmt.Printf("Signed in as %s\n", sess.User().Username)

	var device media.Device = &media.ToneDevice{}
	if *audioSource != "" {
		device = &media.FileDevice{Path: *audioSource}
	}
	rec := media.NewRecorder(device,
		media.WithTickFunc(func(s int) { fmt.Printf("\rrecording %ds ", s) }))
	engine := chat.New(sess, client, chat.WithRecorder(rec))
	defer engine.Close()

	repl(ctx, sess, engine, in)
}

func prompt(in *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !in.Scan() {
		return "", false
	}
	return strings.TrimSpace(in.Text()), true
}

// authenticate runs one login or register attempt; returns false on EOF.
func authenticate(ctx context.Context, sess *session.Session, in *bufio.Scanner) bool {
	choice, ok := prompt(in, "[l]ogin, [r]egister or [f]orgot password? ")
	if !ok {
		return false
	}
	if choice == "f" {
		return recoverPassword(ctx, sess, in)
	}

	email, ok := prompt(in, "email: ")
	if !ok {
		return false
	}
	password, ok := prompt(in, "password: ")
	if !ok {
		return false
	}

	var err error
	if choice == "r" {
		username, ok := prompt(in, "username: ")
		if !ok {
			return false
		}
		fullName, ok := prompt(in, "full name: ")
		if !ok {
			return false
		}
		err = sess.SignUp(ctx, email, password, models.SignUpData{
			Username: username,
			FullName: fullName,
		})
	} else {
		err = sess.SignIn(ctx, email, password)
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
	return true
}

func recoverPassword(ctx context.Context, sess *session.Session, in *bufio.Scanner) bool {
	email, ok := prompt(in, "email: ")
	if !ok {
		return false
	}
	if err := sess.RequestPasswordReset(ctx, email); err != nil {
		fmt.Printf("error: %v\n", err)
		return true
	}
	fmt.Println("check your inbox for the recovery token")
	token, ok := prompt(in, "recovery token: ")
	if !ok {
		return false
	}
	password, ok := prompt(in, "new password: ")
	if !ok {
		return false
	}
	if err := sess.ConfirmPasswordReset(ctx, token, password); err != nil {
		fmt.Printf("error: %v\n", err)
		return true
	}
	fmt.Println("password updated, sign in with the new one")
	return true
}

func repl(ctx context.Context, sess *session.Session, engine *chat.Engine, in *bufio.Scanner) {
	fmt.Println("type /help for commands")
	for {
		line, ok := prompt(in, "> ")
		if !ok {
			return
		}
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if _, err := engine.SendMessage(line); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			continue
		}

		cmd, arg, _ := strings.Cut(line[1:], " ")
		switch cmd {
		case "help":
			fmt.Println(`/new <name>        start a conversation
/contacts          list conversations
/select <id>       open a conversation
/back              close the open conversation
/search <query>    filter conversations
/messages          show the open conversation
/edit <id> <text>  edit one of your messages
/delete <id>       delete a message
/delchat <id>      delete a conversation
/attach <path>     send a file
/record <start|stop|cancel>
/avatar <path>     change your avatar
/logout            sign out
/quit`)
		case "new":
			c, err := engine.StartChat(arg, "")
			if err != nil {
				fmt.Printf("error: %v\n", err)
				break
			}
			fmt.Printf("started chat %d with %s\n", c.ID, c.Name)
		case "contacts":
			printContacts(engine.Contacts())
		case "search":
			printContacts(engine.FilterContacts(arg))
		case "select":
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Println("usage: /select <id>")
				break
			}
			c, err := engine.SelectContact(id)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				break
			}
			fmt.Printf("-- %s --\n", c.Name)
			printMessages(engine.Messages())
		case "back":
			engine.Deselect()
		case "messages":
			printMessages(engine.Messages())
		case "edit":
			idStr, text, _ := strings.Cut(arg, " ")
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				fmt.Println("usage: /edit <id> <text>")
				break
			}
			if err := engine.EditMessage(id, text); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case "delete":
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Println("usage: /delete <id>")
				break
			}
			if !engine.DeleteMessage(id) {
				fmt.Println("no such message")
			}
		case "delchat":
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Println("usage: /delchat <id>")
				break
			}
			if !engine.DeleteContact(id) {
				fmt.Println("no such conversation")
			}
		case "attach":
			if err := attach(ctx, engine, arg); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case "record":
			record(ctx, engine, arg)
		case "avatar":
			if err := avatar(ctx, sess, arg); err != nil {
				fmt.Printf("error: %v\n", err)
			} else {
				fmt.Println("avatar updated")
			}
		case "logout":
			if err := sess.SignOut(ctx); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			return
		case "quit":
			return
		default:
			fmt.Println("unknown command, try /help")
		}
	}
}

func readFile(path string) (name, contentType string, data []byte, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		return "", "", nil, err
	}
	name = filepath.Base(path)
	contentType = mime.TypeByExtension(filepath.Ext(path))
	return name, contentType, data, nil
}

func attach(ctx context.Context, engine *chat.Engine, path string) error {
	name, contentType, data, err := readFile(path)
	if err != nil {
		return err
	}
	msg, err := engine.AttachFile(ctx, name, contentType, data)
	if err != nil {
		return err
	}
	fmt.Printf("sent %s (%s)\n", msg.Attachment.Name, msg.Attachment.Kind)
	return nil
}

func avatar(ctx context.Context, sess *session.Session, path string) error {
	name, contentType, data, err := readFile(path)
	if err != nil {
		return err
	}
	return sess.UpdateAvatar(ctx, name, contentType, data)
}

func record(ctx context.Context, engine *chat.Engine, arg string) {
	switch arg {
	case "start":
		if err := engine.StartRecording(ctx); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case "stop":
		msg, err := engine.StopRecording(ctx)
		if err != nil {
			fmt.Printf("\nerror: %v\n", err)
			break
		}
		fmt.Printf("\nsent %s\n", msg.Attachment.Name)
	case "cancel":
		if err := engine.CancelRecording(); err != nil {
			fmt.Printf("\nerror: %v\n", err)
		}
	default:
		fmt.Println("usage: /record <start|stop|cancel>")
	}
}

func printContacts(contacts []models.Contact) {
	if len(contacts) == 0 {
		fmt.Println("no conversations")
		return
	}
	for _, c := range contacts {
		preview := c.LastMessage
		if preview != "" {
			preview = ": " + preview
		}
		fmt.Printf("%3d  %s%s\n", c.ID, c.Name, preview)
	}
}

func printMessages(messages []models.Message) {
	for _, m := range messages {
		who := "them"
		if m.Sender == models.SenderSelf {
			who = "you"
		}
		line := m.Content
		if m.Attachment != nil {
			line = fmt.Sprintf("[%s] %s %s", m.Attachment.Kind, m.Attachment.Name, m.Content)
		}
		fmt.Printf("%3d %s %-4s %s\n", m.ID, m.Timestamp(), who, line)
	}
}
