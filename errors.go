package main

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// Error codes surfaced to clients. Every rejected action maps onto one of
// these; none of them tear down the connection or the lobby.
const (
	codeNotFound            = "not_found"
	codeForbidden           = "forbidden"
	codeInvalidState        = "invalid_state"
	codeInvalidInput        = "invalid_input"
	codeNameConflict        = "name_conflict"
	codeInsufficientPlayers = "insufficient_players"
	codeInternal            = "internal"
)

type gameError struct {
	code string
	text string
}

func (e gameError) Error() string {
	return e.text
}

func errNotFound(format string, args ...any) error {
	return gameError{codeNotFound, fmt.Sprintf(format, args...)}
}

func errForbidden(format string, args ...any) error {
	return gameError{codeForbidden, fmt.Sprintf(format, args...)}
}

func errInvalidState(format string, args ...any) error {
	return gameError{codeInvalidState, fmt.Sprintf(format, args...)}
}

func errInvalidInput(format string, args ...any) error {
	return gameError{codeInvalidInput, fmt.Sprintf(format, args...)}
}

func errNameConflict(format string, args ...any) error {
	return gameError{codeNameConflict, fmt.Sprintf(format, args...)}
}

func errInsufficientPlayers(format string, args ...any) error {
	return gameError{codeInsufficientPlayers, fmt.Sprintf(format, args...)}
}

func errInternal(format string, args ...any) error {
	return gameError{codeInternal, fmt.Sprintf(format, args...)}
}

// errorCode extracts the client-facing code from an error, defaulting to
// internal for anything that is not a gameError.
func errorCode(err error) string {
	if ge, ok := err.(gameError); ok {
		return ge.code
	}
	return codeInternal
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
