package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and writing prompts to out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for the settings a deployment needs and returns the resulting config
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== lawyerai configuration ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	for {
		provider, err := w.ask("Completion provider (openai, anthropic, gemini)", cfg.AI.Provider)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateProvider(provider); err != nil {
			fmt.Fprintf(w.out, "  %v\n", err)
			continue
		}
		cfg.AI.Provider = strings.ToLower(provider)
		break
	}

	for {
		key, err := w.ask("API key", "")
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateAPIKey(key, cfg.AI.Provider); err != nil {
			fmt.Fprintf(w.out, "  %v\n", err)
			continue
		}
		cfg.AI.APIKey = key
		break
	}

	model, err := w.ask("Model", defaultModel(cfg.AI.Provider))
	if err != nil {
		return nil, err
	}
	cfg.AI.Model = model

	for {
		portStr, err := w.ask("HTTP port", strconv.Itoa(cfg.Server.Port))
		if err != nil {
			return nil, err
		}
		port, convErr := strconv.Atoi(portStr)
		if convErr == nil {
			convErr = validator.ValidatePort(port)
		}
		if convErr != nil {
			fmt.Fprintf(w.out, "  invalid port: %s\n", portStr)
			continue
		}
		cfg.Server.Port = port
		break
	}

	for {
		mode, err := w.ask("Greeting mode (greet, ask)", cfg.Chat.GreetingMode)
		if err != nil {
			return nil, err
		}
		if mode != "greet" && mode != "ask" {
			fmt.Fprintf(w.out, "  invalid greeting mode: %s\n", mode)
			continue
		}
		cfg.Chat.GreetingMode = mode
		break
	}

	fmt.Fprintln(w.out)
	return cfg, nil
}

// ask prints a prompt and returns the trimmed answer, or def when blank
func (w *Wizard) ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}

	line, err := w.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-3-5-sonnet-latest"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "gpt-4"
	}
}
