package model

import (
	"fmt"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Message is a single post on the board. Immutable once created.
type Message struct {
	Author string    `json:"author"`
	Body   string    `json:"body"`
	Time   time.Time `json:"time"`
}

func NewMessage(author, body string) Message {
	return Message{
		Author: author,
		Body:   body,
		Time:   time.Now(),
	}
}

// String renders the notification line delivered to viewers.
func (m Message) String() string {
	return fmt.Sprintf("[%s] %s: %s", m.Time.Format(timeLayout), m.Author, m.Body)
}
