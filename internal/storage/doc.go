/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists terrain documents.
// A document lives in <root>/terrain.json: layer geometry as GeoJSON feature
// collections plus the stamp library. Writes go through a temp file and a
// rename, and the previous file is kept as a timestamped backup; Open falls
// back to the newest valid backup when terrain.json is unreadable.
// Stroke history is kept in <root>/.vtr/history.sqlite as WKT snapshots and
// can be deleted at any time.
package storage
