//go:build !integration

package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
)

type fakeSender struct {
	channel, content string
	err              error
}

func (f *fakeSender) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel, f.content = channelID, content
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func TestToIncoming(t *testing.T) {
	ev := &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "chan-1",
		Content:   "!quickcommand select 1",
		Author:    &discordgo.User{ID: "user-1", Username: "ana"},
	}}

	msg, ok := toIncoming("bot-1", ev)
	if !ok {
		t.Fatal("expected message to map")
	}
	if msg.Platform != "discord" || msg.ChannelID != "chan-1" || msg.AuthorID != "user-1" || msg.AuthorName != "ana" || msg.Content != "!quickcommand select 1" {
		t.Fatalf("unexpected mapping %+v", msg)
	}
	if msg.FromSelf {
		t.Fatal("message from another user marked as self")
	}

	ev.Author.ID = "bot-1"
	if msg, _ = toIncoming("bot-1", ev); !msg.FromSelf {
		t.Fatal("bot's own message must be marked as self")
	}

	if _, ok := toIncoming("bot-1", &discordgo.MessageCreate{Message: &discordgo.Message{}}); ok {
		t.Fatal("message without author should be skipped")
	}
}

func TestSendMessage(t *testing.T) {
	fs := &fakeSender{}
	r := &RealDiscordBotAdapter{sender: fs}

	if err := r.SendMessage(context.Background(), "chan-1", "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.channel != "chan-1" || fs.content != "hi" {
		t.Fatalf("unexpected send %+v", fs)
	}

	fs.err = errors.New("429")
	if err := r.SendMessage(context.Background(), "chan-1", "hi"); !errors.Is(err, fs.err) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := r.SendMessage(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error for empty channel")
	}
	if r.MaxMessageLength() != 2000 {
		t.Fatal("discord limit is 2000")
	}
}
