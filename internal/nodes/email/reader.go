package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap/v2"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
)

// reader runs the read pipeline for a single input item.
type reader struct {
	dial   Dialer
	binary binaryPreparer
	logger *slog.Logger
}

// read opens a session, searches, converts matching messages and applies
// the post-process action. The session is closed on every path.
func (r *reader) read(
	ctx context.Context, creds Credentials, opts Options, index int,
) ([]model.Item, error) {
	logger := r.logger.With("item", index)

	session, err := r.dial(ctx, creds)
	if err != nil {
		return nil, &node.ConnectionError{
			ItemIndex: index, User: creds.User, Host: creds.Host, Err: err,
		}
	}
	defer closeSession(session, logger)

	if err := session.Select(ctx, opts.Mailbox); err != nil {
		return nil, &node.ConnectionError{
			ItemIndex: index, User: creds.User, Host: creds.Host, Err: err,
		}
	}

	messages, err := session.Search(ctx, opts.Criteria, opts.Format)
	if err != nil {
		return nil, &node.SearchError{
			ItemIndex: index, Criteria: opts.Criteria.String(), Err: err,
		}
	}
	logger.Debug("searched mailbox",
		"mailbox", opts.Mailbox, "criteria", opts.Criteria.String(), "matches", len(messages))

	x := &extractor{
		session: session,
		opts:    opts,
		index:   index,
		binary:  r.binary,
		logger:  logger,
	}

	items := make([]model.Item, 0, len(messages))
	for _, msg := range messages {
		if opts.MessageLimit >= 0 && len(items) >= opts.MessageLimit {
			break
		}
		item, err := x.extract(ctx, msg)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	// Flags are set only after every message converted, so a failed
	// extraction leaves the mailbox untouched.
	if opts.Action == ActionMarkRead && len(messages) > 0 {
		uids := make([]imap.UID, len(messages))
		for i, msg := range messages {
			uids[i] = msg.UID
		}
		if err := session.AddFlags(ctx, uids, imap.FlagSeen); err != nil {
			return nil, &node.OperationError{
				ItemIndex: index, Message: "marking messages as read", Err: err,
			}
		}
		logger.Debug("marked messages as read", "count", len(uids))
	}

	return items, nil
}

// readOptions resolves the pipeline options of one item from its params.
func readOptions(p node.Params, index int) (Options, error) {
	format, err := ParseFormat(p.String("format", "simple"))
	if err != nil {
		return Options{}, &node.ConfigurationError{ItemIndex: index, Message: err.Error()}
	}
	action, err := ParsePostProcessAction(p.String("postProcessAction", "read"))
	if err != nil {
		return Options{}, &node.ConfigurationError{ItemIndex: index, Message: err.Error()}
	}

	opts := Options{
		Mailbox:  p.String("mailbox", "INBOX"),
		Action:   action,
		Format:   format,
		Criteria: DefaultCriteria(),
	}

	switch format {
	case FormatSimple:
		opts.DownloadAttachments = p.Bool("downloadAttachments", false)
		if opts.DownloadAttachments {
			opts.AttachmentPrefix = p.String("dataPropertyAttachmentsPrefixName", "attachment_")
		}
	case FormatResolved:
		opts.AttachmentPrefix = p.String("dataPropertyAttachmentsPrefixName", "attachment_")
	}

	options := p.Collection("options")
	if options.Has("customEmailConfig") {
		raw := options.String("customEmailConfig", "")
		criteria, err := ParseCriteria(raw)
		if err != nil {
			return Options{}, &node.ConfigurationError{
				ItemIndex: index,
				Message:   "Custom email config is not valid JSON",
				Value:     raw,
				Err:       err,
			}
		}
		opts.Criteria = criteria
	}

	opts.OutputUID = options.Bool("outLastMessageUID", false)

	limit, err := options.Int("messageLimit", -1)
	if err != nil {
		return Options{}, &node.ConfigurationError{
			ItemIndex: index, Message: "invalid message limit", Err: err,
		}
	}
	if limit < -1 {
		return Options{}, &node.ConfigurationError{
			ItemIndex: index,
			Message:   "message limit must be -1 or a non-negative integer",
			Value:     fmt.Sprint(limit),
		}
	}
	opts.MessageLimit = limit

	return opts, nil
}
