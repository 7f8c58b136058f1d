// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Wxhook receives WeCom application callbacks and starts dailypush runs for
chat commands.

# Usage

	$ wxhook [flags...]

WeCom verifies the callback URL with a GET request, which is answered with the
decrypted echo string. Messages arrive as encrypted POST requests; text
messages are matched against the command table without regard to case and
surrounding whitespace:

	start  dailypush daily
	sat    dailypush sat
	bbc    dailypush news

A matching command starts the runner in the background and the request is
acknowledged immediately with "success". The runner's outcome is not reported
back in the response. Requests that fail signature validation or decryption
get a 400 response.

# Configuration

	WX_TOKEN, WX_ENCODING_AES_KEY, WX_CORP_ID   Callback credentials (required).
	WX_AGENT_ID, WX_SECRET,                     Sender credentials passed on to the
	TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID        runners (required).
	ADDR                                        Address to listen on (default :8081).
	DAILYPUSH_BIN                               Path of the dailypush binary (default dailypush).
	WXHOOK_COMMANDS                             Starlark command table, see below.

Values can also be put into a dotenv or YAML file passed with -config; the
runners are started with DAILYPUSH_CONFIG pointing to the same file.

Under systemd with Type=notify, wxhook reports readiness once it listens and
pings the watchdog when WatchdogSec is set.

# Command table

The built-in table can be replaced by a Starlark file:

	commands = [
	    command(name = "start", argv = [runner, "daily"]),
	    command(name = "weather", argv = [runner, "weather"]),
	]

runner is predeclared as the value of DAILYPUSH_BIN. Every entry whose name
matches a message is started, so one command can start several runners.

# Endpoints

	GET|POST /wechat_callback  WeCom callback (path set with -path).
	GET /health                Health checks, including started and running jobs.
*/
package main

import (
	_ "embed"

	"github.com/learning/dailypush/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
