// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Dailypush builds a digest and pushes it to Telegram and WeCom.

# Usage

	$ dailypush [flags...] <command>

Commands:

	daily    City header, lunar calendar, weather, quote of the day and a SAT question.
	sat      A random SAT question from the question bank.
	news     The BBC News top story.
	weather  Current weather and air quality.
	quote    Quote of the day with a Chinese translation.
	lunar    Chinese lunar calendar date, solar term and festivals.

The digest is printed to standard output. Unless -dry is set, it is also sent
through both Telegram and WeCom; a failure of one does not stop the other.

# Configuration

Configuration is read from the file passed with -config (or DAILYPUSH_CONFIG),
in dotenv or YAML format, and from environment variables, which take
precedence:

	TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID        Telegram bot and chat.
	WX_CORP_ID, WX_AGENT_ID, WX_SECRET          WeCom application.
	QWEATHER_KEY_ID, QWEATHER_PROJECT_ID,
	QWEATHER_PRIVATE_KEY, QWEATHER_API_HOST,
	QWEATHER_LOCATION                           QWeather credentials and location.
	CITY_NAME                                   City shown in the daily header.
	QUESTION_FILE                               SAT question bank (default questions.json).

Telegram and WeCom settings are required unless -dry is set.
*/
package main

import (
	_ "embed"

	"github.com/learning/dailypush/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
