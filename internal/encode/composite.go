// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package encode

import (
	"context"
	"fmt"
	"time"

	"mexport/pkg/metric"
)

// CompositeStep pairs an Encoder with the Transport that delivers its output,
// so Composite can fan a batch out to backends with unrelated wire formats.
type CompositeStep struct {
	Name      string
	Encoder   Encoder
	Transport Transport
}

// Composite sequentially delegates a batch to an ordered list of
// encoder/transport pairs, selected the way the corpus's persistence layer
// selects one concrete adapter behind a shared interface — except here every
// configured step runs, in order, rather than exactly one being chosen.
type Composite struct {
	steps []CompositeStep
}

// NewComposite constructs a Composite over steps, dispatched in the given
// order on every Send.
func NewComposite(steps ...CompositeStep) *Composite {
	return &Composite{steps: steps}
}

// Send encodes and delivers batch through each configured step in order. If
// a step fails terminally the error is returned immediately and subsequent
// steps are not attempted; context cancellation is checked between steps so
// a cancelled caller does not pay for encoders it will never use.
func (c *Composite) Send(ctx context.Context, batch []metric.Snapshot, now time.Time) error {
	for _, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		encoded, err := step.Encoder.Encode(batch, now)
		if err != nil {
			return fmt.Errorf("composite: encode step %q: %w", step.Name, err)
		}
		if err := step.Transport.Send(ctx, encoded); err != nil {
			return fmt.Errorf("composite: send step %q: %w", step.Name, err)
		}
	}
	return nil
}
