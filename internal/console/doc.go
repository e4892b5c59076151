// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package console provides text based interaction with the console of a
// virtual machine.
//
// A [Session] wraps any duplex transport, like a unix socket a QEMU chardev is
// listening on, and allows waiting for output matching a list of [Pattern]s.
// [Login] implements the dialogue of a getty or ssh style login on top of it:
// it answers username, password and confirmation prompts until the shell
// prompt shows up.
//
// The guest kernel may print log messages on the same console at any time.
// Those lines are ignored when looking for prompts, see [LastRelevantLine].
package console
