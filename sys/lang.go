package sys

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/text/language"
)

// Strings is one language's table of user-facing text.
type Strings map[string]string

// Get formats key with args, falling back to English and then to the key itself.
func (s Strings) Get(key string, args ...any) string {
	format, ok := s[key]
	if !ok {
		format, ok = langTables["en"][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

var supportedLangs = []language.Tag{
	language.English,
	language.Spanish,
	language.Indonesian,
}

var langMatcher = language.NewMatcher(supportedLangs)

// MatchLang maps any BCP 47 code to one of the bundled tables.
func MatchLang(code string) string {
	tag, _ := language.MatchStrings(langMatcher, code)
	base, _ := tag.Base()
	if _, ok := langTables[base.String()]; ok {
		return base.String()
	}
	return "en"
}

// Lang returns the table for a chat's configured language.
func Lang(ctx context.Context, chat snowflake.ID) Strings {
	code := ""
	if DB != nil {
		code, _ = GetChatLang(ctx, chat)
	}
	if code == "" && GlobalConfig != nil {
		code = GlobalConfig.DefaultLang
	}
	return langTables[MatchLang(code)]
}

// Localizer adapts Lang to the orchestrator's text port.
type Localizer struct{}

func (Localizer) Text(ctx context.Context, chat snowflake.ID, key string, args ...any) string {
	return Lang(ctx, chat).Get(key, args...)
}

var langTables = map[string]Strings{
	"en": {
		"now_playing":       "**Now playing**\n[%s](%s)\n⏱ %s · requested by %s",
		"now_playing_video": "**Now streaming (audio)**\n[%s](%s)\n⏱ %s · requested by %s",
		"loading_next":      "⏳ Loading the next track...",
		"no_file":           "⚠️ Could not play **%s**: file is missing. Skipping.",
		"error_no_call":     "❌ There is no active voice call. Join a voice channel and try again.",
		"error_unavailable": "❌ The voice server is unavailable. Playback stopped.",
		"error_unsupported": "❌ This stream type is not supported. Playback stopped.",
		"error_file":        "⚠️ The file for **%s** vanished. Skipping.",
		"error_no_audio":    "⚠️ **%s** has no audio track. Skipping.",
		"error_play":        "❌ Playback failed. Playback stopped.",
		"error_download":    "❌ Could not download **%s**. Playback stopped.",
		"queue_ended":       "✅ Queue finished, leaving the call.",
		"queued":            "✅ Added to queue at position %d: [%s](%s)",
		"queue_empty":       "The queue is empty.",
		"queue_header":      "**Queue** (%d)",
		"not_in_voice":      "Join a voice channel first.",
		"no_call":           "Nothing is playing.",
		"paused":            "⏸ Paused.",
		"resumed":           "▶️ Resumed.",
		"muted":             "🔇 Muted.",
		"unmuted":           "🔊 Unmuted.",
		"stopped":           "⏹ Stopped and cleared the queue.",
		"skipped":           "⏭ Skipped.",
		"replaying":         "🔁 Replaying.",
		"volume":            "🔊 Volume set to %d%%.",
		"seeked":            "⏩ Seeked to %s.",
		"seek_invalid":      "Seek must be inside the track (0 - %s).",
		"ping":              "🏓 Gateway %dms · Voice %.0fms · Active calls %d",
		"searching":         "🔎 Searching...",
		"not_found":         "Nothing found for that query.",
		"too_long":          "❌ Tracks longer than %s are not allowed.",
		"resolve_failed":    "❌ Could not read that link.",
		"upload_progress":   "📥 Downloading upload: %d%%",
		"upload_too_large":  "❌ Uploads larger than %d MB are not allowed.",
		"upload_canceled":   "Upload canceled.",
		"blocked":           "You are not allowed to use this bot.",
		"sudo_only":         "Only sudo users can do that.",
		"sudo_added":        "Added <@%s> to %s.",
		"sudo_removed":      "Removed <@%s> from %s.",
		"cookies_refreshed": "Refreshed %d cookie files (%d in pool).",
		"cookies_failed":    "Cookie refresh failed.",
		"already_paused":    "Already paused.",
		"already_playing":   "Already playing.",
		"already_muted":     "Already muted.",
		"not_muted":         "The stream is not muted.",
		"unknown_action":    "Unknown action.",
		"playlist_queued":   "➕ Queued %d more tracks from the playlist.",
		"queue_no_such":     "There is no track at that position.",
		"queue_removed":     "🗑 Removed **%s** from the queue.",
		"language_set":      "🌐 Language set to `%s`.",
	},
	"es": {
		"now_playing":       "**Reproduciendo**\n[%s](%s)\n⏱ %s · pedido por %s",
		"now_playing_video": "**Transmitiendo (audio)**\n[%s](%s)\n⏱ %s · pedido por %s",
		"loading_next":      "⏳ Cargando la siguiente pista...",
		"no_file":           "⚠️ No se pudo reproducir **%s**: falta el archivo. Saltando.",
		"error_no_call":     "❌ No hay una llamada de voz activa.",
		"error_unavailable": "❌ El servidor de voz no está disponible. Reproducción detenida.",
		"error_unsupported": "❌ Este tipo de transmisión no es compatible.",
		"error_file":        "⚠️ El archivo de **%s** desapareció. Saltando.",
		"error_no_audio":    "⚠️ **%s** no tiene audio. Saltando.",
		"error_download":    "❌ No se pudo descargar **%s**. Reproducción detenida.",
		"queue_ended":       "✅ Cola terminada, saliendo de la llamada.",
		"paused":            "⏸ En pausa.",
		"resumed":           "▶️ Reanudado.",
		"stopped":           "⏹ Detenido y cola vaciada.",
		"language_set":      "🌐 Idioma cambiado a `%s`.",
	},
	"id": {
		"now_playing":   "**Sedang diputar**\n[%s](%s)\n⏱ %s · diminta oleh %s",
		"loading_next":  "⏳ Memuat lagu berikutnya...",
		"error_no_call": "❌ Tidak ada panggilan suara aktif.",
		"queue_ended":   "✅ Antrean selesai, keluar dari panggilan.",
		"paused":        "⏸ Dijeda.",
		"resumed":       "▶️ Dilanjutkan.",
		"stopped":       "⏹ Dihentikan dan antrean dikosongkan.",
		"language_set":  "🌐 Bahasa diatur ke `%s`.",
	},
}
