/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"rollsum/internal/config"
	"rollsum/internal/conversation"
	"rollsum/internal/events"
	"rollsum/internal/gateway"
	"rollsum/internal/orche"
	"rollsum/internal/session"
	"rollsum/internal/summary"
	"rollsum/pkg/logger"
)

type flags struct {
	configPath  string
	sessionID   string
	variant     string
	threshold   *int
	writeConfig string
	dump        bool
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := pflag.NewFlagSet("chatbot", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (default ./config.yaml or ~/.rollsum/config.yaml)")
	fs.StringVarP(&f.sessionID, "session", "s", "", "resume an existing session")
	fs.StringVar(&f.variant, "variant", "", "summary layout for new sessions: field or embedded")
	threshold := fs.Int("threshold", 0, "turns tolerated before summarizing (unset = variant default)")
	fs.StringVar(&f.writeConfig, "write-config", "", "write a starter config file to this path and exit")
	fs.BoolVar(&f.dump, "dump", false, "print the stored session as YAML and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.Changed("threshold") {
		f.threshold = threshold
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if f.writeConfig != "" {
		if err := config.WriteDefault(f.writeConfig); err != nil {
			logger.Fatalf("write config: %v", err)
		}
		logger.Infof("wrote starter config to %s", f.writeConfig)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, f, os.Stdin, os.Stdout); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(ctx context.Context, f *flags, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warnf("ignoring log level: %v", err)
	}

	store, err := session.OpenStore(cfg.Session.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if f.dump {
		return dumpSession(ctx, store, f.sessionID, out)
	}

	var es *elasticsearch.Client
	if len(cfg.Elastic.Addresses) > 0 {
		es, err = elasticsearch.NewClient(elasticsearch.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
		})
		if err != nil {
			return fmt.Errorf("create es client: %w", err)
		}
	}

	emitter := events.NewChannelEmitter(256)
	consumer := events.NewESConsumer(es, cfg.Elastic.Index)
	if es != nil {
		consumer.Start(ctx, emitter)
	}
	defer func() {
		emitter.Close()
		consumer.Wait()
	}()

	sess, err := openSession(ctx, store, emitter, f, cfg)
	if err != nil {
		return err
	}
	st, err := sess.Load(ctx)
	if err != nil {
		return err
	}

	gw, err := gateway.New(ctx, cfg.Gateway())
	if err != nil {
		return err
	}
	threshold := cfg.Summary.Threshold
	if f.threshold != nil {
		threshold = f.threshold
	}
	ctrl, err := summary.New(&summary.Config{
		Gateway:    gateway.Traced(gw),
		Variant:    summary.Variant(sess.Variant),
		Threshold:  threshold,
		KeepRecent: cfg.Summary.KeepRecent,
		Metrics:    logger.NewMetrics(es, logger.MetricsIndex),
	})
	if err != nil {
		return err
	}
	runner, err := orche.New(ctx, ctrl,
		orche.WithEmitter(sess.Emitter()),
		orche.WithSessionID(sess.ID),
		orche.WithES(es, logger.MetricsIndex))
	if err != nil {
		return err
	}

	log := logger.Logger()
	log.Info().
		Str("session", sess.ID).
		Str("variant", string(ctrl.Variant())).
		Int("threshold", ctrl.Threshold()).
		Int("stored_turns", st.Store.Len()).
		Msg("session ready")
	return chatLoop(ctx, runner, sess, st, in, out)
}

// openSession resumes f.sessionID or starts a new session. A resumed session
// keeps the variant it was created with.
func openSession(ctx context.Context, store *session.Store, emitter events.Emitter, f *flags, cfg *config.Config) (*session.Session, error) {
	if f.sessionID != "" {
		sess, err := session.ResumeSession(ctx, store, emitter, f.sessionID)
		if err != nil {
			return nil, err
		}
		if f.variant != "" && f.variant != sess.Variant {
			logger.Warnf("session %s uses variant %q, ignoring --variant=%s", sess.ID, sess.Variant, f.variant)
		}
		return sess, nil
	}
	name := cfg.Summary.Variant
	if f.variant != "" {
		name = f.variant
	}
	variant, err := summary.ParseVariant(name)
	if err != nil {
		return nil, err
	}
	return session.NewSession(ctx, store, emitter, string(variant))
}

func chatLoop(ctx context.Context, runner *orche.Runner, sess *session.Session, st *conversation.State, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		st.Store.Append(conversation.UserTurn(line))
		_, runErr := runner.Run(ctx, st)
		// a reply appended before a failed summarization is still worth keeping
		if err := sess.Save(ctx, st); err != nil {
			return err
		}
		if runErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Errorf("pass failed: %v", runErr)
			continue
		}
		if reply, ok := lastAssistant(st); ok {
			logger.Tokenf("%s", reply.Content)
			fmt.Fprintln(out)
		}
	}
}

func lastAssistant(st *conversation.State) (conversation.Turn, bool) {
	turns := st.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == conversation.RoleAssistant {
			return turns[i], true
		}
	}
	return conversation.Turn{}, false
}

type sessionDump struct {
	Session   string              `yaml:"session"`
	Variant   string              `yaml:"variant"`
	Summary   string              `yaml:"summary,omitempty"`
	Revision  int                 `yaml:"revision"`
	UpdatedAt string              `yaml:"updated_at"`
	Turns     []conversation.Turn `yaml:"turns"`
}

func dumpSession(ctx context.Context, store *session.Store, id string, out io.Writer) error {
	if id == "" {
		ids, err := store.ListSessions(ctx)
		if err != nil {
			return err
		}
		return yaml.NewEncoder(out).Encode(map[string][]string{"sessions": ids})
	}
	rec, err := store.LoadSession(ctx, id)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(sessionDump{
		Session:   rec.ID,
		Variant:   rec.Variant,
		Summary:   rec.Summary,
		Revision:  rec.Revision,
		UpdatedAt: rec.UpdatedAt,
		Turns:     rec.Turns,
	})
}
