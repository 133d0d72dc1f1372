// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package main

import "github.com/faircloth-lab/smilogram"

func main() {
	smilogram.Main()
}
