// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package base58_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/chainutil/base58"
)

func TestBase58(t *testing.T) {
	stringTests := []struct {
		in  string
		out string
	}{
		{"", ""},
		{" ", "Z"},
		{"-", "n"},
		{"0", "q"},
		{"1", "r"},
		{"-1", "4SU"},
		{"11", "4k8"},
		{"abc", "ZiCa"},
		{"1234598760", "3mJr7AoUXx2Wqd"},
		{"abcdefghijklmnopqrstuvwxyz", "3yxU3u1igY8WkgtjK92fbJQCd4BZiiT1v25f"},
		{"00000000000000000000000000000000000000000000000000000000000000", "3sN2THZeE9Eh9eYrwkvZqNstbHGvrxSAM7gXUXvyFQP8XvQLUqNCS27icwUeDT7ckHm4FUHM2mTVh1vbLmk7y"},
	}

	hexTests := []struct {
		in  string
		out string
	}{
		{"61", "2g"},
		{"626262", "a3gV"},
		{"636363", "aPEr"},
		{"73696d706c792061206c6f6e6720737472696e67", "2cFupjhnEsSn59qHXstmK2ffpLv2"},
		{"00eb15231dfceb60925886b67d065299925915aeb172c06647", "1NS17iag9jJgTHD1VXjvLCEnZuQ3rJDE9L"},
		{"516b6fcd0f", "ABnLTmg"},
		{"bf4f89001e670274dd", "3SEo3LWLoPntC"},
		{"572e4794", "3EFU7m"},
		{"ecac89cad93923c02321", "EJDM8drfXA6uyA"},
		{"10c8511e", "Rt5zm"},
		{"00000000000000000000", "1111111111"},
	}

	// Encode tests
	for x, test := range stringTests {
		assert.Equalf(t, test.out, base58.Encode([]byte(test.in)),
			"Encode test #%d", x)
	}

	// Decode tests
	for x, test := range hexTests {
		b, err := hex.DecodeString(test.in)
		require.NoErrorf(t, err, "hex decode #%d", x)
		assert.Equalf(t, b, base58.Decode(test.out), "Decode test #%d", x)
	}

	// Decode with invalid input
	invalidTests := []string{"0", "O", "I", "l", "3mJr0", "O3yxU", "3sNI", "4kl8", "0OIl", "!@#$%^&*()-_=+~`"}
	for x, test := range invalidTests {
		assert.Emptyf(t, base58.Decode(test), "Decode invalidity test #%d", x)
	}
}

func TestBase58Check(t *testing.T) {
	checkEncodingStringTests := []struct {
		version byte
		in      string
		out     string
	}{
		{20, "", "3MNQE1X"},
		{20, " ", "B2Kr6dBE"},
		{20, "-", "B3jv1Aft"},
		{20, "0", "B482yuaX"},
		{20, "1", "B4CmeGAC"},
		{20, "-1", "mM7eUf6kB"},
		{20, "11", "mP7BMTDVH"},
		{20, "abc", "4QiVtDjUdeq"},
		{20, "1234598760", "ZmNb8uQn5zvnUohNCEPP"},
		{20, "abcdefghijklmnopqrstuvwxyz", "K2RYDcKfupxwXdWhSAxQPCeiULntKm63UXyx5MvEH2"},
		{20, "00000000000000000000000000000000000000000000000000", "bi1EWXwJay2udZVxLYozuTb8Meg4W9c6xnmJaRDjg6pri5MBAxb9XwrpQXbtnqEoRV5U2pixnFfwyXC8tRAVC8XxnjK"},
	}

	for x, test := range checkEncodingStringTests {
		// test encoding
		assert.Equalf(t, test.out, base58.CheckEncode([]byte(test.in), test.version),
			"CheckEncode test #%d", x)

		// test decoding
		res, version, err := base58.CheckDecode(test.out)
		require.NoErrorf(t, err, "CheckDecode test #%d", x)
		assert.Equalf(t, test.version, version, "CheckDecode test #%d", x)
		assert.Equalf(t, test.in, string(res), "CheckDecode test #%d", x)
	}

	// test the two decoding failure cases
	// case 1: checksum error
	_, _, err := base58.CheckDecode("3MNQE1Y")
	assert.Equal(t, base58.ErrChecksum, err)

	// case 2: invalid formats (string lengths below 5 mean the version byte
	// and/or the checksum bytes are missing).
	testString := ""
	for len := 0; len < 4; len++ {
		testString += "x"
		_, _, err = base58.CheckDecode(testString)
		assert.Equal(t, base58.ErrInvalidFormat, err)
	}
}
