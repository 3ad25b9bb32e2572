// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/url"
	"strings"

	"github.com/mmeshcher/smmpanel-system/internal/model"
)

// platformDomains содержит известные домены для каждой платформы.
var platformDomains = map[string][]string{
	"instagram": {"instagram.com"},
	"youtube":   {"youtube.com", "youtu.be"},
	"tiktok":    {"tiktok.com"},
	"facebook":  {"facebook.com", "fb.com"},
	"twitter":   {"twitter.com", "x.com"},
}

// IsValidTargetURL проверяет, что ссылка указывает на известный домен платформы.
// Поддомены (www, m и т.п.) допускаются, схема должна быть http или https.
func IsValidTargetURL(platform, rawURL string) bool {
	domains, ok := platformDomains[strings.ToLower(platform)]
	if !ok {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}

	return false
}

// IsValidQuantity проверяет, что количество попадает в допустимый диапазон услуги.
func IsValidQuantity(svc *model.Service, quantity int64) bool {
	return quantity >= svc.MinQuantity && quantity <= svc.MaxQuantity
}
