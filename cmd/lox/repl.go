package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/driver"
)

const continuationPrompt = ".. "

type repl struct {
	session *driver.Session
	pal     *palette
	prompt  string
	history string
}

func (r *repl) run() int {
	fmt.Println(r.pal.info(fmt.Sprintf("Lox REPL (%s engine). Type :help for commands.", r.session.Engine())))

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(r.complete)

	if r.history != "" {
		if f, err := os.Open(r.history); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			if f, err := os.Create(r.history); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	for {
		src, ok := r.read(ln)
		if !ok {
			fmt.Println()
			return driver.ExitOK
		}

		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(trimmed, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if quit := r.command(trimmed); quit {
				return driver.ExitOK
			}
			continue
		}

		result, err := r.session.Run(src)
		report(r.pal, result, err)
	}
}

// read collects lines until braces, parentheses and strings are closed.
func (r *repl) read(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := r.prompt
		if b.Len() > 0 {
			prompt = continuationPrompt
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, r.pal.err(err.Error()))
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if !incomplete(b.String()) {
			return b.String(), true
		}
	}
}

// incomplete reports whether src ends inside a block, a parenthesized
// expression or a string literal.
func incomplete(src string) bool {
	depth := 0
	lexer := compiler.NewLexer(src)
	for {
		tok := lexer.NextToken()
		switch tok.Type {
		case compiler.TokenEOF:
			return depth > 0
		case compiler.TokenError:
			if tok.Lexeme == "Unterminated string." {
				return true
			}
		case compiler.TokenLeftBrace, compiler.TokenLeftParen:
			depth++
		case compiler.TokenRightBrace, compiler.TokenRightParen:
			depth--
		}
	}
}

// command runs a REPL meta-command and reports whether to quit.
func (r *repl) command(cmd string) bool {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Println("REPL Commands:")
		fmt.Println("  :help, :h, :?     Show this help")
		fmt.Println("  :globals          List defined globals")
		fmt.Println("  :engine           Show the execution engine")
		fmt.Println("  :session          Show the session ID")
		fmt.Println("  :quit, :q         Exit REPL")
	case ":globals":
		fmt.Println(r.pal.faint(strings.Join(r.session.Globals(), " ")))
	case ":engine":
		fmt.Printf("Current engine: %s\n", r.session.Engine())
	case ":session":
		fmt.Printf("Session: %s\n", r.session.ID)
	case ":quit", ":q":
		return true
	default:
		fmt.Fprintln(os.Stderr, r.pal.warn(fmt.Sprintf("unknown command %s. Type :help for commands.", cmd)))
	}
	return false
}

// complete offers keywords and globals for the word before the cursor.
func (r *repl) complete(line string) []string {
	start := len(line)
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	prefix := line[start:]
	if prefix == "" {
		return nil
	}

	var out []string
	candidates := append(compiler.Keywords(), r.session.Globals()...)
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, line[:start]+c)
		}
	}
	return out
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
