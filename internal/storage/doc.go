/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists the serialized workspace in a durable key-value
// store. Three backends share the KV interface: a directory of JSON files with
// transactional writes and timestamped backups, an embedded SQLite database
// that also keeps a per-key snapshot history, and a PostgreSQL table.
// A Persister ties a document.Store to one key and saves after every change.
package storage
