package store

import json "github.com/goccy/go-json"

func encode(v any) ([]byte, error) { return json.Marshal(v) }

func decode(raw []byte, v any) error { return json.Unmarshal(raw, v) }
