// Copyright 2024 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2024 Institute of the Czech National Corpus,
//                Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package notifications

import (
	"errors"
	"fmt"
	goMail "net/mail"
	"slices"
	"strings"
	"time"

	"github.com/czcorpus/cnc-gokit/mail"
	"github.com/czcorpus/conomi/client"
	"github.com/czcorpus/conomi/general"
	"github.com/rs/zerolog/log"
)

const (
	defaultSender = "squidcount@localhost"
)

// Notifier sends run reports to administrators
// (failed files, missing days, corrupted cache entries)
type Notifier interface {
	SendNotification(subject string, metadata map[string]any, paragraphs ...string) error
}

// formatMetadata renders metadata as a single line sorted by keys
func formatMetadata(metadata map[string]any) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	items := make([]string, len(keys))
	for i, k := range keys {
		items[i] = fmt.Sprintf("%s: %v", k, metadata[k])
	}
	return strings.Join(items, ", ")
}

// emailNotifier sends reports via SMTP, each paragraph
// as a separate div followed by the metadata
type emailNotifier struct {
	conf *mail.NotificationConf
	loc  *time.Location
}

func (en *emailNotifier) SendNotification(subject string, metadata map[string]any, paragraphs ...string) error {
	divs := make([]string, 0, len(paragraphs)+1)
	for _, p := range paragraphs {
		divs = append(divs, strings.ReplaceAll(p, "\n", "<br />"))
	}
	if len(metadata) > 0 {
		divs = append(divs, formatMetadata(metadata))
	}
	return mail.SendNotification(en.conf, en.loc, mail.FormattedNotification{
		Subject: subject,
		Divs:    divs,
	})
}

// conomiNotifier forwards reports to a Conomi server
// which takes care of delivery
type conomiNotifier struct {
	client *client.ConomiClient
}

func (cn *conomiNotifier) SendNotification(subject string, metadata map[string]any, paragraphs ...string) error {
	return cn.client.SendReport(
		general.SeverityLevelWarning,
		subject,
		strings.Join(paragraphs, "\n\n"),
		client.WithArgs(metadata),
	)
}

// logNotifier only logs reports, it is used when
// no notification is configured
type logNotifier struct{}

func (ln *logNotifier) SendNotification(subject string, metadata map[string]any, paragraphs ...string) error {
	log.Warn().
		Fields(metadata).
		Str("subject", subject).
		Strs("body", paragraphs).
		Msg("notification not configured, report logged only")
	return nil
}

func newEmailNotifier(conf *mail.NotificationConf, loc *time.Location) (*emailNotifier, error) {
	if conf.Sender == "" {
		log.Warn().Msgf("e-mail sender not set - using default %s", defaultSender)
		conf.Sender = defaultSender
	}
	if len(conf.Recipients) == 0 {
		return nil, errors.New("no e-mail recipients configured")
	}
	for _, addr := range append([]string{conf.Sender}, conf.Recipients...) {
		if _, err := goMail.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("incorrect e-mail address %s: %w", addr, err)
		}
	}
	log.Info().Strs("recipients", conf.Recipients).Msg("run reports will be sent via e-mail")
	return &emailNotifier{conf: conf, loc: loc}, nil
}

// NewNotifier creates an e-mail or a Conomi notifier. Both
// configurations are mutually exclusive. Without any of them,
// reports are only logged.
func NewNotifier(
	emailConf *mail.NotificationConf,
	conomiConf *client.ConomiClientConf,
	loc *time.Location,
) (Notifier, error) {
	switch {
	case emailConf != nil && conomiConf != nil:
		return nil, errors.New("either Conomi or e-mail notifier can be configured")
	case conomiConf != nil:
		log.Info().Msg("run reports will be sent via Conomi")
		return &conomiNotifier{client: client.NewConomiClient(*conomiConf)}, nil
	case emailConf != nil:
		en, err := newEmailNotifier(emailConf, loc)
		if err != nil {
			return nil, err
		}
		return en, nil
	}
	return &logNotifier{}, nil
}
