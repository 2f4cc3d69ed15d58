// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import "errors"

// ErrNilContext is returned when Init is called without a context.
var ErrNilContext = errors.New("nil context")

// ErrUnknownExporter is returned for exporter names this build does not
// support.
var ErrUnknownExporter = errors.New("unknown exporter")
