package bot

import (
	"fmt"
	"strconv"
	"strings"

	"vkopt-message-parser/internal/core/filter"
	"vkopt-message-parser/internal/domain"
)

// parseCaption разбирает параметры разбора из подписи к файлу, по одному на строку:
//
//	only: id1, id2
//	exclude: id3
//	since: 2019.01.01 13:00:00
//	depth: 0
//
// Пустая подпись дает параметры по умолчанию.
func parseCaption(caption string) (domain.ParseOptions, error) {
	opts := domain.ParseOptions{Delimiter: domain.TextDelimiter(domain.DefaultDelimiter)}

	for _, line := range strings.Split(caption, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return opts, fmt.Errorf("не понимаю строку %q, ожидается \"ключ: значение\"", line)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "only":
			opts.OnlyIncludeNames = splitNames(value)
		case "exclude":
			opts.ExcludeNames = splitNames(value)
		case "since":
			opts.Since = value
		case "depth":
			depth, err := strconv.Atoi(value)
			if err != nil {
				return opts, fmt.Errorf("depth должно быть целым числом, получено %q", value)
			}
			opts.MaxDepth = &depth
		default:
			return opts, fmt.Errorf("неизвестный параметр %q", key)
		}
	}

	if _, err := filter.New(opts.FilterOptions); err != nil {
		return opts, err
	}
	return opts, nil
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		n = strings.TrimPrefix(strings.TrimSpace(n), "@")
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}
