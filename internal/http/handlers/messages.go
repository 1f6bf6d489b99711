package handlers

var messages = map[string]map[string]string{
	"en": {
		"not_signed_in":         "Please sign in to use this feature.",
		"subscription_required": "This feature requires a Pro subscription.",
		"quota_exhausted":       "You have used all of your quota for this feature.",
		"not_configured":        "The image service is not configured.",
		"not_found":             "Not found.",
		"bad_request":           "Invalid request payload.",
		"unauthorized":          "Sign in required.",
		"provider_failure":      "The image provider rejected the request.",
		"internal":              "Something went wrong, please try again.",
		"timedOut":              "Timed out waiting for result, please retry.",
		"failed":                "The operation failed.",
		"canceled":              "The operation was canceled.",
	},
	"id": {
		"not_signed_in":         "Silakan masuk untuk memakai fitur ini.",
		"subscription_required": "Fitur ini memerlukan langganan Pro.",
		"quota_exhausted":       "Kuota untuk fitur ini sudah habis.",
		"not_configured":        "Layanan gambar belum dikonfigurasi.",
		"not_found":             "Data tidak ditemukan.",
		"bad_request":           "Payload permintaan tidak valid.",
		"unauthorized":          "Silakan masuk terlebih dahulu.",
		"provider_failure":      "Penyedia gambar menolak permintaan.",
		"internal":              "Terjadi kesalahan, silakan coba lagi.",
		"timedOut":              "Waktu tunggu hasil habis, silakan coba lagi.",
		"failed":                "Operasi gagal.",
		"canceled":              "Operasi dibatalkan.",
	},
}

func localize(locale, key string) string {
	if table, ok := messages[locale]; ok {
		if msg, ok := table[key]; ok {
			return msg
		}
	}
	if msg, ok := messages["en"][key]; ok {
		return msg
	}
	return key
}
