// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package provider

import "regexp"

// Connection descriptors reach log sites in two shapes: key=value pairs
// (libpq, ADO-style, MySQL DSN options) and URL userinfo. Both are covered.
var (
	redactKV  = regexp.MustCompile(`(?i)\b(password|pwd)(\s*=)([^;&\s]*)`)
	redactURL = regexp.MustCompile(`(://[^:/@\s]+:)([^@\s]+)@`)
)

// Redact masks credential material in a connection descriptor so it can be
// logged. Every log site that could receive a descriptor must route it
// through here.
func Redact(connStr string) string {
	s := redactKV.ReplaceAllString(connStr, "$1$2***")
	s = redactURL.ReplaceAllString(s, "$1***@")
	return s
}
