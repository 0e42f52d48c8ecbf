// Package service is the policy layer between the session handlers and the
// shared state: password rules, registration/login/logout, the online
// session registry, and the posting path.
package service

import (
	"errors"
	"net"
	"strings"

	"github.com/adwski/netboard/board"
	"github.com/adwski/netboard/model"
	"github.com/adwski/netboard/proto"
	"github.com/rs/zerolog"
)

const (
	minPasswordLen = 4
	maxPasswordLen = 18
)

var (
	ErrBadPassword   = errors.New("password length out of bounds")
	ErrBadUsername   = errors.New("unusable username")
	ErrAlreadyOnline = errors.New("user already logged in")
	ErrNotOnline     = errors.New("user is not logged in")
	ErrBadBody       = errors.New("message contains reserved characters")
	ErrRegister      = errors.New("unable to register user")
	ErrLogin         = errors.New("unable to log user in")
)

type (
	// UserStore is the credential database. Implementations return the
	// storage/memory sentinel errors.
	UserStore interface {
		Register(username, password string) error
		Authenticate(username, password string) error
		Remove(username string) error
	}

	// Board is the broadcast coordinator.
	Board interface {
		Post(author, body string) model.Message
		Announce(text string)
		Subscribe() *board.Subscription
		Unsubscribe(sub *board.Subscription)
		History() []model.Message
		Viewers() int
	}

	// SessionHandle identifies the connection behind a logged-in user.
	// Kept for duplicate-login detection and the status API.
	SessionHandle interface {
		RemoteAddr() net.Addr
	}

	Service struct {
		store  UserStore
		board  Board
		online *onlineRegistry
		logger zerolog.Logger
	}

	Config struct {
		UserStore UserStore
		Board     Board
		Logger    *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		store:  cfg.UserStore,
		board:  cfg.Board,
		online: newOnlineRegistry(),
		logger: cfg.Logger.With().Str("component", "service").Logger(),
	}
}

// Register creates a user and logs the session in. Policy checks run
// before the store is touched.
func (svc *Service) Register(username, password string, h SessionHandle) error {
	if err := checkUsername(username); err != nil {
		return err
	}
	if err := checkPassword(password); err != nil {
		return err
	}
	if err := svc.store.Register(username, password); err != nil {
		return errors.Join(ErrRegister, err)
	}
	svc.logger.Debug().
		Str("user", username).
		Msg("user registered")
	return svc.bringOnline(username, h)
}

// Login authenticates a user and marks the session online. A user already
// online is rejected; the first session stays untouched.
func (svc *Service) Login(username, password string, h SessionHandle) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	if err := svc.store.Authenticate(username, password); err != nil {
		return errors.Join(ErrLogin, err)
	}
	return svc.bringOnline(username, h)
}

func (svc *Service) bringOnline(username string, h SessionHandle) error {
	if !svc.online.add(username, h) {
		return ErrAlreadyOnline
	}
	svc.board.Announce(username + " has logged in")
	svc.logger.Debug().
		Str("user", username).
		Msg("user online")
	return nil
}

// Logout removes the user from the online registry. Announces the leave
// only if the user was actually online, so every join is paired with
// exactly one leave.
func (svc *Service) Logout(username string) {
	if !svc.online.remove(username) {
		return
	}
	svc.board.Announce(username + " has logged out")
	svc.logger.Debug().
		Str("user", username).
		Msg("user offline")
}

// Post publishes a message from an online user. Bodies that would corrupt
// packet framing are rejected instead of mis-parsed downstream.
func (svc *Service) Post(author, body string) error {
	if strings.ContainsAny(body, proto.Delim+"\n") {
		return ErrBadBody
	}
	if !svc.online.has(author) {
		return ErrNotOnline
	}
	svc.board.Post(author, body)
	return nil
}

// RemoveUser logs the user out if needed and deletes the credential record.
func (svc *Service) RemoveUser(username string) error {
	svc.Logout(username)
	if err := svc.store.Remove(username); err != nil {
		return err
	}
	svc.logger.Debug().
		Str("user", username).
		Msg("user removed")
	return nil
}

// Subscribe attaches a new viewer with its history replay preloaded.
func (svc *Service) Subscribe() *board.Subscription {
	return svc.board.Subscribe()
}

func (svc *Service) Unsubscribe(sub *board.Subscription) {
	svc.board.Unsubscribe(sub)
}

// History returns the current replay window, oldest first.
func (svc *Service) History() []model.Message {
	return svc.board.History()
}

// Status reports who is online and how many viewers are subscribed.
func (svc *Service) Status() Status {
	return Status{
		Online:      svc.online.list(),
		Viewers:     svc.board.Viewers(),
		HistorySize: len(svc.board.History()),
	}
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return ErrBadPassword
	}
	return nil
}

func checkUsername(username string) error {
	if username == "" || strings.ContainsAny(username, proto.Delim+"\n") {
		return ErrBadUsername
	}
	return nil
}
