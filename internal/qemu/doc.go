// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package qemu controls QEMU virtual machines: composing their command line,
// starting them, logging into their console and live migrating them. It
// expects the required QEMU binary to be present on the system.
//
// Each [Machine] gets a console attached to a unix socket and a QMP monitor
// socket. The console is used with the [console] package to log in and run
// commands. The monitor is used to control the machine, e.g. for migrations.
package qemu
