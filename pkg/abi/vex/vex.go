// Copyright 2024 The VexOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vex contains the constants and types that make up the VexOS
// user/kernel ABI. Numeric values follow the generic Linux ABI so that
// existing userspace conventions (signal numbers, sigaction flags, wait
// status encodings) apply unchanged.
package vex
